package commands

import (
	"time"

	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
	"cms-backend/pkg/utils"
)

// SaveProductCommand creates or replaces a product and its category
// memberships.
type SaveProductCommand struct {
	TenantID    string   `json:"-" validate:"required,excludesall=#"`
	ProductID   string   `json:"-" validate:"required,max=128,excludesall=#"`
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Slug        string   `json:"slug" validate:"max=200"`
	Price       float64  `json:"price" validate:"gte=0"`
	Image       string   `json:"image" validate:"max=2048"`
	SortOrder   int      `json:"sortOrder"`
	CategoryIDs []string `json:"categoryIds" validate:"max=100,dive,required,max=128,excludesall=#"`
	Description string   `json:"description" validate:"max=50000"`
}

// Validate validates the command
func (c SaveProductCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteProductCommand removes a product and its category memberships.
type DeleteProductCommand struct {
	TenantID  string `json:"-" validate:"required,excludesall=#"`
	ProductID string `json:"-" validate:"required,excludesall=#"`
}

// Validate validates the command
func (c DeleteProductCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RepriceCategoryCommand changes the price of every product in a category,
// either by a percentage or by a fixed amount. Prices never drop below zero.
type RepriceCategoryCommand struct {
	TenantID   string   `json:"-" validate:"required,excludesall=#"`
	CategoryID string   `json:"-" validate:"required,excludesall=#"`
	Percent    *float64 `json:"percent" validate:"omitempty,gte=-100,lte=1000"`
	Amount     *float64 `json:"amount"`
}

// Validate validates the command
func (c RepriceCategoryCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if (c.Percent == nil) == (c.Amount == nil) {
		return pkgerrors.NewValidationError("exactly one of percent or amount is required")
	}
	return nil
}

// SaveCouponCommand creates or replaces a coupon. Changing Code moves the
// coupon's unique code pointer.
type SaveCouponCommand struct {
	TenantID   string     `json:"-" validate:"required,excludesall=#"`
	CouponID   string     `json:"-" validate:"required,max=128,excludesall=#"`
	Code       string     `json:"code" validate:"required,min=2,max=64,excludesall=#"`
	PercentOff float64    `json:"percentOff" validate:"gte=0,lte=100"`
	AmountOff  float64    `json:"amountOff" validate:"gte=0"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// Validate validates the command
func (c SaveCouponCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.PercentOff == 0 && c.AmountOff == 0 {
		return pkgerrors.NewValidationError("a coupon needs percentOff or amountOff")
	}
	return nil
}

// DeleteCouponCommand removes a coupon and releases its code.
type DeleteCouponCommand struct {
	TenantID string `json:"-" validate:"required,excludesall=#"`
	CouponID string `json:"-" validate:"required,excludesall=#"`
}

// Validate validates the command
func (c DeleteCouponCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SaveFormCommand creates or replaces a form. Changing Slug moves the
// form's unique slug pointer.
type SaveFormCommand struct {
	TenantID string           `json:"-" validate:"required,excludesall=#"`
	FormID   string           `json:"-" validate:"required,max=128,excludesall=#"`
	Title    string           `json:"title" validate:"required,max=200"`
	Slug     string           `json:"slug" validate:"required,max=200,excludesall=#?"`
	Fields   []map[string]any `json:"fields" validate:"max=100"`
}

// Validate validates the command
func (c SaveFormCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if keyspace.NormalizeFormSlug(c.Slug) == "" {
		return pkgerrors.NewValidationError("slug must not be empty")
	}
	return nil
}

// DeleteFormCommand removes a form and releases its slug.
type DeleteFormCommand struct {
	TenantID string `json:"-" validate:"required,excludesall=#"`
	FormID   string `json:"-" validate:"required,excludesall=#"`
}

// Validate validates the command
func (c DeleteFormCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SaveResourceCommand records a media file. When SourceURL is set the file
// was imported from that address and a media mapping is kept for it.
type SaveResourceCommand struct {
	TenantID    string `json:"-" validate:"required,excludesall=#"`
	ResourceID  string `json:"-" validate:"required,max=128,excludesall=#"`
	URL         string `json:"url" validate:"required,url,max=2048"`
	SourceURL   string `json:"sourceUrl" validate:"omitempty,url,max=2048"`
	ContentType string `json:"contentType" validate:"max=128"`
}

// Validate validates the command
func (c SaveResourceCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteResourceCommand removes a media file and its mapping.
type DeleteResourceCommand struct {
	TenantID   string `json:"-" validate:"required,excludesall=#"`
	ResourceID string `json:"-" validate:"required,excludesall=#"`
}

// Validate validates the command
func (c DeleteResourceCommand) Validate() error {
	return utils.ValidateStruct(c)
}
