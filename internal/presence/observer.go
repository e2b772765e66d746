package presence

// Delivery kinds reported to an Observer
const (
	DeliveryPresence  = "presence"
	DeliveryBroadcast = "broadcast"
	DeliveryDirect    = "direct"
)

// Observer receives registry activity for metrics. Calls happen outside the
// registry lock and must not call back into the registry.
type Observer interface {
	MemberJoined(roomID string)
	MemberLeft(roomID string)
	Delivered(kind string, err error)
	Reaped(roomID string, count int)
	Occupancy(rooms, sessions int)
}

type nopObserver struct{}

func (nopObserver) MemberJoined(string) {}
func (nopObserver) MemberLeft(string) {}
func (nopObserver) Delivered(string, error) {}
func (nopObserver) Reaped(string, int) {}
func (nopObserver) Occupancy(int, int) {}
