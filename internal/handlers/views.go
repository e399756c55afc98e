package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/pharmadrop/internal/models"
)

type pharmacyRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Image string    `json:"image"`
}

type userRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type orderItemView struct {
	models.OrderItem
	Image string `json:"image,omitempty"`
}

// orderView is an order with display fields of its parties joined in.
type orderView struct {
	models.Order
	Pharmacy       *pharmacyRef    `json:"pharmacy,omitempty"`
	Customer       *userRef        `json:"customer,omitempty"`
	DeliveryPerson *userRef        `json:"deliveryPerson,omitempty"`
	Items          []orderItemView `json:"items"`
}

func newOrderView(o models.Order) orderView {
	v := orderView{Order: o, Items: make([]orderItemView, 0, len(o.Items))}
	if o.Pharmacy != nil {
		v.Pharmacy = &pharmacyRef{ID: o.Pharmacy.ID, Name: o.Pharmacy.Name, Image: o.Pharmacy.Image}
	}
	if o.Customer != nil {
		v.Customer = &userRef{ID: o.Customer.ID, Name: o.Customer.Name, Email: o.Customer.Email, Phone: o.Customer.Phone}
	}
	if o.DeliveryPerson != nil {
		v.DeliveryPerson = &userRef{ID: o.DeliveryPerson.ID, Name: o.DeliveryPerson.Name, Phone: o.DeliveryPerson.Phone}
	}
	for _, item := range o.Items {
		iv := orderItemView{OrderItem: item}
		if item.Medicine != nil {
			iv.Image = item.Medicine.Image
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func newOrderViews(orders []models.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

// medicineView adds the derived expiry flags.
type medicineView struct {
	models.Medicine
	IsExpired    bool `json:"isExpired"`
	IsNearExpiry bool `json:"isNearExpiry"`
}

func newMedicineView(m models.Medicine, now time.Time) medicineView {
	return medicineView{Medicine: m, IsExpired: m.IsExpired(now), IsNearExpiry: m.IsNearExpiry(now)}
}

func newMedicineViews(meds []models.Medicine) []medicineView {
	now := time.Now()
	views := make([]medicineView, 0, len(meds))
	for _, m := range meds {
		views = append(views, newMedicineView(m, now))
	}
	return views
}
