package observability

// Metric name prefixes
const (
	MetricPrefix = "taixiu"
)

// Metric names
const (
	// Betting metrics
	BetsPlacedTotal = MetricPrefix + ".bets.placed_total"
	BetAmount       = MetricPrefix + ".bets.amount"

	// Round metrics
	RoundsFinishedTotal = MetricPrefix + ".rounds.finished_total"
	RoundStakedTotal    = MetricPrefix + ".rounds.staked_total"
	RoundPaidOutTotal   = MetricPrefix + ".rounds.paid_out_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
	UsersCreatedTotal        = MetricPrefix + ".users.created_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelSide      = "side"
	LabelResult    = "result"
	LabelPolicy    = "policy"
)
