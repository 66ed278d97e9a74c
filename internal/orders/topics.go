package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderFinalized = "order.finalized"
)

// Partition key = order ref, supaya semua event 1 order maintain urutan.
func PartitionKey(orderRef string) []byte { return []byte(orderRef) }
