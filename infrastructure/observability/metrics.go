package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"taixiu/config"
	"taixiu/events"
)

// MetricsProvider manages OpenTelemetry metrics for the game
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	betsPlacedCounter            metric.Int64Counter
	betAmountHist                metric.Int64Histogram
	roundsFinishedCounter        metric.Int64Counter
	roundStakedCounter           metric.Int64Counter
	roundPaidOutCounter          metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
	balanceTransactionsCounter   metric.Int64Counter
	usersCreatedCounter          metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.markInitialized()
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.markInitialized()
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	return mp.InitializeWithReader(reader)
}

// InitializeWithReader sets up the instruments on top of the given reader
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("taixiu")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) markInitialized() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.initialized = true
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.betsPlacedCounter, err = mp.meter.Int64Counter(
		BetsPlacedTotal,
		metric.WithDescription("Total number of accepted bets"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bets placed counter: %w", err)
	}

	mp.betAmountHist, err = mp.meter.Int64Histogram(
		BetAmount,
		metric.WithDescription("Stake of accepted bets in minor units"),
		metric.WithUnit("{cent}"),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 100000, 1000000, 10000000),
	)
	if err != nil {
		return fmt.Errorf("failed to create bet amount histogram: %w", err)
	}

	mp.roundsFinishedCounter, err = mp.meter.Int64Counter(
		RoundsFinishedTotal,
		metric.WithDescription("Total number of settled rounds"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds finished counter: %w", err)
	}

	mp.roundStakedCounter, err = mp.meter.Int64Counter(
		RoundStakedTotal,
		metric.WithDescription("Total amount staked on settled rounds in minor units"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create round staked counter: %w", err)
	}

	mp.roundPaidOutCounter, err = mp.meter.Int64Counter(
		RoundPaidOutTotal,
		metric.WithDescription("Total amount paid to winners in minor units"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create round paid out counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of balance transactions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	mp.usersCreatedCounter, err = mp.meter.Int64Counter(
		UsersCreatedTotal,
		metric.WithDescription("Total number of registered users"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create users created counter: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBetPlaced records an accepted bet
func (mp *MetricsProvider) RecordBetPlaced(ctx context.Context, side string, amount int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelSide, side))
	mp.betsPlacedCounter.Add(ctx, 1, attrs)
	mp.betAmountHist.Record(ctx, amount, attrs)
}

// RecordRoundFinished records a settled round and its money flow
func (mp *MetricsProvider) RecordRoundFinished(ctx context.Context, result, policy string, staked, paidOut int64) {
	if !mp.isEnabled() {
		return
	}

	mp.roundsFinishedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(LabelResult, result),
			attribute.String(LabelPolicy, policy),
		),
	)
	mp.roundStakedCounter.Add(ctx, staked)
	mp.roundPaidOutCounter.Add(ctx, paidOut)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// RecordBalanceTransaction records a balance transaction
func (mp *MetricsProvider) RecordBalanceTransaction(ctx context.Context, transactionType string) {
	if !mp.isEnabled() {
		return
	}

	mp.balanceTransactionsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(LabelType, transactionType),
		),
	)
}

// RecordUserCreated records a new registration
func (mp *MetricsProvider) RecordUserCreated(ctx context.Context) {
	if !mp.isEnabled() {
		return
	}

	mp.usersCreatedCounter.Add(ctx, 1)
}

// Subscribe records metrics from committed domain events
func (mp *MetricsProvider) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBetPlaced, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.BetPlacedEvent); ok {
			mp.RecordBetPlaced(ctx, string(e.Side), e.Amount)
		}
	})
	bus.Subscribe(events.EventTypeRoundFinished, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.RoundFinishedEvent); ok {
			mp.RecordRoundFinished(ctx, string(e.Result), string(e.Policy), e.TotalStaked, e.TotalPaidOut)
		}
	})
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.BalanceChangeEvent); ok {
			mp.RecordBalanceTransaction(ctx, string(e.TransactionType))
		}
	})
	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, event events.Event) {
		mp.RecordUserCreated(ctx)
	})
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
