// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrProductNotFound is a sentinel error
type ErrProductNotFound struct {
	ProductID int
}

func (e *ErrProductNotFound) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

func NewProductNotFound(id int) error {
	return &ErrProductNotFound{ProductID: id}
}

// ErrUnsupportedKind is returned when no delivery channel is configured for a
// notification kind.
type ErrUnsupportedKind struct {
	Kind string
}

func (e *ErrUnsupportedKind) Error() string {
	return fmt.Sprintf("unsupported message kind: %s", e.Kind)
}

func NewUnsupportedKind(kind string) error {
	return &ErrUnsupportedKind{Kind: kind}
}
