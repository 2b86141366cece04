package handlers

import (
	"errors"

	"cms-backend/application/commands"
	"cms-backend/application/commands/bus"
)

// Register wires every catalog command to its handler.
func Register(b *bus.CommandBus, deps Dependencies) error {
	products := NewProductHandler(deps)
	coupons := NewCouponHandler(deps)
	forms := NewFormHandler(deps)
	resources := NewResourceHandler(deps)

	return errors.Join(
		b.Register(commands.SaveProductCommand{}, bus.Typed(products.Save)),
		b.Register(commands.DeleteProductCommand{}, bus.Typed(products.Delete)),
		b.Register(commands.RepriceCategoryCommand{}, bus.Typed(products.Reprice)),
		b.Register(commands.SaveCouponCommand{}, bus.Typed(coupons.Save)),
		b.Register(commands.DeleteCouponCommand{}, bus.Typed(coupons.Delete)),
		b.Register(commands.SaveFormCommand{}, bus.Typed(forms.Save)),
		b.Register(commands.DeleteFormCommand{}, bus.Typed(forms.Delete)),
		b.Register(commands.SaveResourceCommand{}, bus.Typed(resources.Save)),
		b.Register(commands.DeleteResourceCommand{}, bus.Typed(resources.Delete)),
	)
}
