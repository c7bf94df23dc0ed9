package engine

// Side of the book an order belongs to.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side { return -s }

// OrderType is a closed enum over the two supported order kinds.
// The matching loop switches on it exhaustively; there is no other
// dispatch mechanism for order behavior.
type OrderType int8

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// OrderStatus tracks an order through its lifecycle:
// New -> {PartiallyFilled}* -> {Filled | Resting | Cancelled}.
// Filled and Cancelled are terminal.
type OrderStatus int8

const (
	StatusNew OrderStatus = iota
	StatusResting
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

func (st OrderStatus) String() string {
	switch st {
	case StatusNew:
		return "new"
	case StatusResting:
		return "resting"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is one participant's trading intent. IDs and sequence numbers are
// assigned by the engine at submission and never reused within an episode.
// Owner is used for trade attribution only; it never affects priority.
type Order struct {
	ID        uint64
	Side      Side
	Type      OrderType
	Price     int64 // integer ticks; ignored for Market orders
	Qty       int64 // original quantity in lots
	Remaining int64 // unfilled quantity, decreases monotonically
	Seq       uint64
	Owner     string
	Status    OrderStatus
}

// Filled returns the executed portion of the order.
func (o *Order) Filled() int64 { return o.Qty - o.Remaining }

// Trade is one execution. Price is always the resting (maker) order's
// price. Trades are immutable once created and never merge or split.
type Trade struct {
	Seq         uint64
	BuyOrderID  uint64
	SellOrderID uint64
	Price       int64
	Qty         int64
	TakerSide   Side
	Buyer       string
	Seller      string
}

// PriceLevel is one aggregated (price, total quantity) row of a depth
// snapshot.
type PriceLevel struct {
	Price int64
	Qty   int64
}
