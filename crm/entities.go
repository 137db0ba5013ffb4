package crm

import (
	"time"

	"github.com/goliatone/go-crm-repository/entity"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/uptrace/bun"
)

// Entity type names. They are the CRM endpoint names and the keys relation
// sources are registered under.
const (
	TypeCustomer     = "customer"
	TypeSubscription = "subscription"
	TypeAppointment  = "appointment"
	TypeDocument     = "document"
	TypeServiceType  = "serviceType"
	TypeSpot         = "spot"
	TypeOffice       = "office"
	TypeAccount      = "account"
)

// Foreign key fields, named as in CRM documents.
const (
	FieldCustomerID      = "customerID"
	FieldSubscriptionID  = "subscriptionID"
	FieldAppointmentID   = "appointmentID"
	FieldOfficeID        = "officeID"
	FieldServiceID       = "serviceID"
	FieldAppointmentType = "type"
	FieldSpotID          = "spotID"
	FieldTypeID          = "typeID"
)

// FieldActive is the flag toggled by Activate and Deactivate.
const FieldActive = "active"

// Customer is a CRM customer.
type Customer struct {
	entity.Base
	CustomerID  Int    `json:"customerID"`
	OfficeID    Int    `json:"officeID"`
	FirstName   string `json:"fname"`
	LastName    string `json:"lname"`
	CompanyName string `json:"companyName"`
	Email       string `json:"email"`
	Phone       string `json:"phone1"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Status      Int    `json:"status"`
	Balance     Float  `json:"balance"`
	DateAdded   string `json:"dateAdded"`
}

var customerRelations = entity.Relations{
	"subscriptions": entity.HasMany{Related: TypeSubscription, ForeignKey: FieldCustomerID},
	"appointments":  entity.HasMany{Related: TypeAppointment, ForeignKey: FieldCustomerID},
	"documents":     entity.HasMany{Related: TypeDocument, ForeignKey: FieldCustomerID},
	"office":        entity.BelongsTo{Related: TypeOffice, ForeignKey: FieldOfficeID},
}

func (c *Customer) PrimaryKey() int             { return int(c.CustomerID) }
func (c *Customer) Relations() entity.Relations { return customerRelations }
func (c *Customer) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldCustomerID:
		return c.CustomerID.Value()
	case FieldOfficeID:
		return c.OfficeID.Value()
	}
	return 0, false
}

// Subscription is a recurring service contract of a customer.
type Subscription struct {
	entity.Base
	SubscriptionID  Int    `json:"subscriptionID"`
	CustomerID      Int    `json:"customerID"`
	OfficeID        Int    `json:"officeID"`
	ServiceID       Int    `json:"serviceID"`
	Active          Int    `json:"active"`
	Frequency       Int    `json:"frequency"`
	RecurringCharge Float  `json:"recurringCharge"`
	NextService     string `json:"nextService"`
	DateAdded       string `json:"dateAdded"`
}

var subscriptionRelations = entity.Relations{
	"customer":     entity.BelongsTo{Related: TypeCustomer, ForeignKey: FieldCustomerID},
	"serviceType":  entity.BelongsTo{Related: TypeServiceType, ForeignKey: FieldServiceID},
	"appointments": entity.HasMany{Related: TypeAppointment, ForeignKey: FieldSubscriptionID},
}

func (s *Subscription) PrimaryKey() int             { return int(s.SubscriptionID) }
func (s *Subscription) Relations() entity.Relations { return subscriptionRelations }
func (s *Subscription) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldSubscriptionID:
		return s.SubscriptionID.Value()
	case FieldCustomerID:
		return s.CustomerID.Value()
	case FieldOfficeID:
		return s.OfficeID.Value()
	case FieldServiceID:
		return s.ServiceID.Value()
	}
	return 0, false
}

// IsActive reports whether the subscription is active.
func (s *Subscription) IsActive() bool { return s.Active == 1 }

// Appointment is a scheduled or completed service visit.
type Appointment struct {
	entity.Base
	AppointmentID  Int    `json:"appointmentID"`
	CustomerID     Int    `json:"customerID"`
	SubscriptionID Int    `json:"subscriptionID"`
	OfficeID       Int    `json:"officeID"`
	Type           Int    `json:"type"`
	SpotID         Int    `json:"spotID"`
	Status         Int    `json:"status"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Duration       Int    `json:"duration"`
}

// Appointment statuses.
const (
	AppointmentPending   = 0
	AppointmentCompleted = 1
	AppointmentCancelled = -2
)

var appointmentRelations = entity.Relations{
	"customer":     entity.BelongsTo{Related: TypeCustomer, ForeignKey: FieldCustomerID},
	"subscription": entity.BelongsTo{Related: TypeSubscription, ForeignKey: FieldSubscriptionID},
	"serviceType":  entity.BelongsTo{Related: TypeServiceType, ForeignKey: FieldAppointmentType},
	"spot":         entity.BelongsTo{Related: TypeSpot, ForeignKey: FieldSpotID},
	"documents":    entity.HasMany{Related: TypeDocument, ForeignKey: FieldAppointmentID},
}

func (a *Appointment) PrimaryKey() int             { return int(a.AppointmentID) }
func (a *Appointment) Relations() entity.Relations { return appointmentRelations }
func (a *Appointment) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldAppointmentID:
		return a.AppointmentID.Value()
	case FieldCustomerID:
		return a.CustomerID.Value()
	case FieldSubscriptionID:
		return a.SubscriptionID.Value()
	case FieldOfficeID:
		return a.OfficeID.Value()
	case FieldAppointmentType:
		return a.Type.Value()
	case FieldSpotID:
		return a.SpotID.Value()
	}
	return 0, false
}

// Document is a file attached to an appointment or a customer.
type Document struct {
	entity.Base
	DocumentID    Int    `json:"documentID"`
	CustomerID    Int    `json:"customerID"`
	AppointmentID Int    `json:"appointmentID"`
	OfficeID      Int    `json:"officeID"`
	Description   string `json:"description"`
	Link          string `json:"documentLink"`
	ShowCustomer  Int    `json:"showCustomer"`
	DateAdded     string `json:"dateAdded"`
}

var documentRelations = entity.Relations{
	"appointment": entity.BelongsTo{Related: TypeAppointment, ForeignKey: FieldAppointmentID},
	"customer":    entity.BelongsTo{Related: TypeCustomer, ForeignKey: FieldCustomerID},
}

func (d *Document) PrimaryKey() int             { return int(d.DocumentID) }
func (d *Document) Relations() entity.Relations { return documentRelations }
func (d *Document) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, "documentID":
		return d.DocumentID.Value()
	case FieldCustomerID:
		return d.CustomerID.Value()
	case FieldAppointmentID:
		return d.AppointmentID.Value()
	case FieldOfficeID:
		return d.OfficeID.Value()
	}
	return 0, false
}

// ServiceType is reference data describing a kind of service.
type ServiceType struct {
	entity.Base
	TypeID        Int    `json:"typeID"`
	OfficeID      Int    `json:"officeID"`
	Description   string `json:"description"`
	Frequency     Int    `json:"frequency"`
	DefaultCharge Float  `json:"defaultCharge"`
	Category      string `json:"category"`
}

func (s *ServiceType) PrimaryKey() int             { return int(s.TypeID) }
func (s *ServiceType) Relations() entity.Relations { return nil }
func (s *ServiceType) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldTypeID:
		return s.TypeID.Value()
	case FieldOfficeID:
		return s.OfficeID.Value()
	}
	return 0, false
}

// Spot is a schedulable time slot on a route.
type Spot struct {
	entity.Base
	SpotID    Int    `json:"spotID"`
	OfficeID  Int    `json:"officeID"`
	RouteID   Int    `json:"routeID"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Capacity  Int    `json:"spotCapacity"`
	Latitude  Float  `json:"latitude"`
	Longitude Float  `json:"longitude"`
}

var spotRelations = entity.Relations{
	"office": entity.BelongsTo{Related: TypeOffice, ForeignKey: FieldOfficeID},
}

func (s *Spot) PrimaryKey() int             { return int(s.SpotID) }
func (s *Spot) Relations() entity.Relations { return spotRelations }
func (s *Spot) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldSpotID:
		return s.SpotID.Value()
	case FieldOfficeID:
		return s.OfficeID.Value()
	case "routeID":
		return s.RouteID.Value()
	}
	return 0, false
}

// Office is a branch of the CRM company.
type Office struct {
	entity.Base
	OfficeID   Int    `json:"officeID"`
	OfficeName string `json:"officeName"`
	CompanyID  Int    `json:"companyID"`
	Timezone   string `json:"timezone"`
	Phone      string `json:"contactPhone"`
}

func (o *Office) PrimaryKey() int             { return int(o.OfficeID) }
func (o *Office) Relations() entity.Relations { return nil }
func (o *Office) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField, FieldOfficeID:
		return o.OfficeID.Value()
	}
	return 0, false
}

// Account is a customer portal login, stored locally and linked to a CRM
// customer.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a" json:"-" msgpack:"-"`
	entity.Base   `bun:"-"`

	ID         int       `bun:"id,pk,autoincrement" json:"id"`
	Email      string    `bun:"email,notnull,unique" json:"email"`
	CustomerID int       `bun:"customer_id" json:"customerID"`
	OfficeID   int       `bun:"office_id" json:"officeID"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

var accountRelations = entity.Relations{
	"customer": entity.BelongsTo{Related: TypeCustomer, ForeignKey: FieldCustomerID},
}

func (a *Account) PrimaryKey() int             { return a.ID }
func (a *Account) Relations() entity.Relations { return accountRelations }
func (a *Account) Attribute(field string) (int, bool) {
	switch field {
	case entity.PrimaryKeyField:
		return a.ID, a.ID != 0
	case FieldCustomerID:
		return a.CustomerID, a.CustomerID != 0
	case FieldOfficeID:
		return a.OfficeID, a.OfficeID != 0
	}
	return 0, false
}

// Resources of the CRM entity types.
var (
	CustomerResource     = repository.Resource[*Customer]{Name: TypeCustomer, New: func() *Customer { return &Customer{} }}
	SubscriptionResource = repository.Resource[*Subscription]{Name: TypeSubscription, ActiveField: FieldActive, New: func() *Subscription { return &Subscription{} }}
	AppointmentResource  = repository.Resource[*Appointment]{Name: TypeAppointment, New: func() *Appointment { return &Appointment{} }}
	DocumentResource     = repository.Resource[*Document]{Name: TypeDocument, New: func() *Document { return &Document{} }}
	ServiceTypeResource  = repository.Resource[*ServiceType]{Name: TypeServiceType, IDField: FieldTypeID, New: func() *ServiceType { return &ServiceType{} }}
	SpotResource         = repository.Resource[*Spot]{Name: TypeSpot, New: func() *Spot { return &Spot{} }}
	OfficeResource       = repository.Resource[*Office]{Name: TypeOffice, New: func() *Office { return &Office{} }}
)
