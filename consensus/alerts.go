package consensus

// Alert types. Expiry is interpreted according to the type.
const (
	AlertBlockExpiry uint16 = 1
	AlertTimeExpiry  uint16 = 2
)

// Alert is an operator-facing notice raised by consensus events such as
// unsupported feature activations or emergency deactivations.
type Alert struct {
	Source string
	Type   uint16
	Expiry int64
	Text   string
}

// AlertBoard keeps the currently live alerts. It is written only from the
// block-processing path and therefore needs no locking of its own.
type AlertBoard struct {
	alerts []Alert
}

// NewAlertBoard returns an empty board.
func NewAlertBoard() *AlertBoard { return &AlertBoard{} }

// Add appends an alert, replacing any previous alert from the same source.
func (b *AlertBoard) Add(alert Alert) {
	kept := b.alerts[:0]
	for _, a := range b.alerts {
		if a.Source != alert.Source {
			kept = append(kept, a)
		}
	}
	b.alerts = append(kept, alert)
}

// Expire drops alerts whose expiry has passed for the supplied block height
// and timestamp.
func (b *AlertBoard) Expire(block int64, blockTime int64) {
	kept := b.alerts[:0]
	for _, a := range b.alerts {
		switch a.Type {
		case AlertBlockExpiry:
			if block >= a.Expiry {
				continue
			}
		case AlertTimeExpiry:
			if blockTime >= a.Expiry {
				continue
			}
		}
		kept = append(kept, a)
	}
	b.alerts = kept
}

// Active returns a copy of the live alerts.
func (b *AlertBoard) Active() []Alert {
	out := make([]Alert, len(b.alerts))
	copy(out, b.alerts)
	return out
}
