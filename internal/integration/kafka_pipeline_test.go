//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/tow-etl-service/internal/config"
	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
	"github.com/couchcryptid/tow-etl-service/internal/pipeline"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

var baseTime = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

// publishedSummary holds a deserialized message read from the sink topic.
type publishedSummary struct {
	Summary domain.StationSummary
	Key     string
	Headers map[string]string
}

// readSummary reads a single message from the sink consumer and deserializes it.
func readSummary(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedSummary {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var summary domain.StationSummary
	require.NoError(t, json.Unmarshal(msg.Value, &summary), "unmarshal sink message")

	return publishedSummary{Summary: summary, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

func readingMessage(t *testing.T, stationID string, metric domain.Metric, v float64, ts time.Time, asMsgpack bool) kafkago.Message {
	t.Helper()
	rec := domain.RawReadingRecord{
		StationID:   stationID,
		StationName: "Station " + stationID,
		Metric:      string(metric),
		Value:       &v,
		Timestamp:   ts.Format(time.RFC3339),
	}
	msg := kafkago.Message{Key: []byte(stationID), Time: ts}
	var err error
	if asMsgpack {
		msg.Value, err = msgpack.Marshal(rec)
		msg.Headers = []kafkago.Header{{Key: "content-type", Value: []byte(domain.ContentTypeMsgpack)}}
	} else {
		msg.Value, err = json.Marshal(rec)
	}
	require.NoError(t, err)
	return msg
}

// hourlyReadings emits temperature (JSON) and humidity (MessagePack) for
// hours consecutive hours; every other hour is wet.
func hourlyReadings(t *testing.T, stationID string, hours int) []kafkago.Message {
	t.Helper()
	msgs := make([]kafkago.Message, 0, 2*hours)
	for i := range hours {
		ts := baseTime.Add(time.Duration(i) * time.Hour)
		rh := 60.0
		if i%2 == 0 {
			rh = 90
		}
		msgs = append(msgs,
			readingMessage(t, stationID, domain.MetricTemperature, 8, ts, false),
			readingMessage(t, stationID, domain.MetricHumidity, rh, ts, true),
		)
	}
	return msgs
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (extractor)
// and kafka.Writer (summary sink) round-trip through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msg := readingMessage(t, "pier", domain.MetricHumidity, 91, baseTime, true)
	require.NoError(t, producer.WriteMessages(ctx, msg))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("pier"), raw.Key)
	assert.Equal(t, testSourceTopic, raw.Topic)
	assert.Equal(t, domain.ContentTypeMsgpack, raw.Headers["content-type"])
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	reading, err := pipeline.NewTransformer(discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, domain.MetricHumidity, reading.Metric)
	assert.Equal(t, 91.0, reading.Value)

	st := store.NewMemoryStore(domain.DefaultStationConfig(), 8, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, st.LoadBatch(ctx, []domain.Reading{reading}))
	summary, err := st.Summary("pier")
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.Publish(ctx, []domain.StationSummary{summary}))

	got := readSummary(ctx, t, newSinkConsumer(t, broker))
	assert.Equal(t, "pier", got.Key)
	assert.Equal(t, "pier", got.Headers["station_id"])
	_, err = time.Parse(time.RFC3339, got.Headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")
	_, err = uuid.Parse(got.Headers["message_id"])
	assert.NoError(t, err, "message_id should be a UUID")
	assert.Equal(t, "Station pier", got.Summary.Station.Name)
	assert.Equal(t, 1, got.Summary.Air.Humidity.Count)
}

// TestPipelineEndToEnd wires reader, transformer, store, publisher and writer
// against real Kafka and waits for complete summaries of two stations.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	const hours = 48
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	msgs := append(hourlyReadings(t, "pier", hours), hourlyReadings(t, "hill", hours)...)
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	st := store.NewMemoryStore(domain.DefaultStationConfig(), 32, discardLogger(), metrics)
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), st, discardLogger(), metrics, 50)
	pub := pipeline.NewPublisher(st, writer, clockwork.NewRealClock(), 500*time.Millisecond, discardLogger(), metrics)

	runCtx, stop := context.WithCancel(ctx)
	pipelineErr := make(chan error, 1)
	publisherErr := make(chan error, 1)
	go func() { pipelineErr <- p.Run(runCtx) }()
	go func() { publisherErr <- pub.Run(runCtx) }()

	// Summaries are republished as readings arrive; wait for the complete ones.
	consumer := newSinkConsumer(t, broker)
	complete := map[string]domain.StationSummary{}
	for len(complete) < 2 {
		got := readSummary(ctx, t, consumer)
		assert.Equal(t, got.Key, got.Headers["station_id"])
		if got.Summary.Air.TempC.Count == hours && got.Summary.Air.Humidity.Count == hours {
			complete[got.Key] = got.Summary
		}
	}

	stop()
	require.NoError(t, <-pipelineErr)
	require.NoError(t, <-publisherErr)

	for _, id := range []string{"pier", "hill"} {
		sum := complete[id]
		assert.Equal(t, "Station "+id, sum.Station.Name)
		assert.Equal(t, domain.QAPass, sum.QAStatus)

		year := sum.Air.TimeOfWetness.ByYear[2023]
		assert.Equal(t, hours, year.TotalHours)
		assert.Equal(t, hours/2, year.TimeOfWetnessActual)
		assert.Equal(t, domain.QAFail, year.QAState, "two days cannot pass density")
		assert.Nil(t, year.TimeOfWetness)
		require.NotNil(t, year.CoverageAnalysis)
		assert.Equal(t, domain.EnhancedFailDensity, year.CoverageAnalysis.EnhancedQAState)
		assert.Nil(t, sum.Air.TimeOfWetness.AnnualTimeOfWetness)
	}
	assert.Empty(t, st.Pending(), "every station should be acknowledged")
}

// TestPipelineTransformError verifies that an invalid message (poison pill)
// is skipped and the pipeline continues with valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{"), Time: baseTime},
		kafkago.Message{Key: []byte("bad"), Value: []byte(`{"station_id":"bad","metric":"temperature","timestamp":"2023-03-01T00:00:00Z"}`), Time: baseTime},
		readingMessage(t, "pier", domain.MetricTemperature, 12, baseTime, false),
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	st := store.NewMemoryStore(domain.DefaultStationConfig(), 8, discardLogger(), metrics)
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), st, discardLogger(), metrics, 50)
	pub := pipeline.NewPublisher(st, writer, clockwork.NewRealClock(), 500*time.Millisecond, discardLogger(), metrics)

	runCtx, stop := context.WithCancel(ctx)
	pipelineErr := make(chan error, 1)
	publisherErr := make(chan error, 1)
	go func() { pipelineErr <- p.Run(runCtx) }()
	go func() { publisherErr <- pub.Run(runCtx) }()

	consumer := newSinkConsumer(t, broker)
	got := readSummary(ctx, t, consumer)
	assert.Equal(t, "pier", got.Key)
	assert.Equal(t, 1, got.Summary.Air.TempC.Count)

	// Only the valid station is ever summarized.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")
	assert.Equal(t, []string{"pier"}, st.StationIDs())

	stop()
	require.NoError(t, <-pipelineErr)
	require.NoError(t, <-publisherErr)
}
