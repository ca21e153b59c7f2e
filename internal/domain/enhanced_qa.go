package domain

// CoverageAnalysis is the coverage block attached to a year in enhanced QA.
type CoverageAnalysis struct {
	Temperature     CoverageResult  `json:"temperature"`
	Humidity        CoverageResult  `json:"humidity"`
	EnhancedQAState EnhancedQAState `json:"enhanced_qa_state"`
}

// EnhancedYearResult is a density result extended with coverage analysis.
type EnhancedYearResult struct {
	YearResult
	CoverageAnalysis CoverageAnalysis `json:"coverage_analysis"`
}

// EnhancedQA layers temporal coverage checks on top of a TOWCalculator's
// density QA. A year passes only when it has enough hours with data and
// those hours are spread across the year for both temperature and humidity.
type EnhancedQA struct {
	tow      *TOWCalculator
	analyzer *YearCoverageAnalyzer
}

// NewEnhancedQA wires a calculator to a coverage analyzer.
func NewEnhancedQA(tow *TOWCalculator, analyzer *YearCoverageAnalyzer) *EnhancedQA {
	return &EnhancedQA{tow: tow, analyzer: analyzer}
}

// YearsWithCoverage returns every year's density result with temperature and
// humidity coverage and the combined verdict.
func (q *EnhancedQA) YearsWithCoverage() YearMap[EnhancedYearResult] {
	years := q.tow.Years()
	out := make(YearMap[EnhancedYearResult], len(years))
	for year, res := range years {
		temp := q.analyze(year, MetricTemperature)
		rh := q.analyze(year, MetricHumidity)
		out[year] = EnhancedYearResult{
			YearResult: res,
			CoverageAnalysis: CoverageAnalysis{
				Temperature:     temp,
				Humidity:        rh,
				EnhancedQAState: combineQA(res.QAState, temp, rh),
			},
		}
	}
	return out
}

// combineQA checks density first; coverage is only consulted for years that
// already pass density.
func combineQA(density QAState, temp, rh CoverageResult) EnhancedQAState {
	switch {
	case density != QAPass:
		return EnhancedFailDensity
	case !temp.AdequateCoverage || !rh.AdequateCoverage:
		return EnhancedFailCoverage
	default:
		return EnhancedPass
	}
}

// AssessYearCoverage scores one metric's coverage for year regardless of
// density. metric must be temperature or humidity.
func (q *EnhancedQA) AssessYearCoverage(year int, metric Metric) (CoverageResult, error) {
	if err := coverageMetric(metric); err != nil {
		return CoverageResult{}, err
	}
	return q.analyze(year, metric), nil
}

// HasAdequateYearCoverage reports whether metric's coverage for year reaches
// the analyzer threshold.
func (q *EnhancedQA) HasAdequateYearCoverage(year int, metric Metric) (bool, error) {
	res, err := q.AssessYearCoverage(year, metric)
	if err != nil {
		return false, err
	}
	return res.AdequateCoverage, nil
}

func (q *EnhancedQA) analyze(year int, metric Metric) CoverageResult {
	ts, _ := q.tow.Timestamps(year, metric)
	return q.analyzer.Analyze(ts, year)
}
