package settings

import "fmt"

// InventoryMethod selects the batch ordering policy for stock-out allocation.
type InventoryMethod string

const (
	// MethodFIFO allocates oldest batches first.
	MethodFIFO InventoryMethod = "FIFO"
	// MethodLIFO allocates newest batches first.
	MethodLIFO InventoryMethod = "LIFO"
	// MethodFEFO allocates batches expiring soonest first, falling back to
	// FIFO for equal expiry dates.
	MethodFEFO InventoryMethod = "FEFO"
)

// Valid reports whether the method is one of the supported policies.
func (m InventoryMethod) Valid() bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodFEFO:
		return true
	}
	return false
}

// Inventory holds the system-wide inventory configuration. Changing it never
// reinterprets documents that are already committed.
type Inventory struct {
	Method             InventoryMethod `json:"method"`
	ConsiderExpiryDate bool            `json:"consider_expiry_date"`
}

// UpdateInput describes a settings change request.
type UpdateInput struct {
	Method             InventoryMethod
	ConsiderExpiryDate bool
}

// Validate checks the input before any write happens.
func (in UpdateInput) Validate() error {
	if !in.Method.Valid() {
		return fmt.Errorf("settings: unknown inventory method %q", in.Method)
	}
	return nil
}
