package models

import (
	"time"
)

// Role distinguishes what an account can do.
type Role string

const (
	RoleRenter   Role = "renter" // car owner
	RoleRentee   Role = "rentee" // customer
	RoleMechanic Role = "mechanic"
)

// Valid reports whether r is a role an Account can be registered with.
func (r Role) Valid() bool {
	return r == RoleRenter || r == RoleRentee
}

// RequestStatus is the only lifecycle state of a RequestEntry.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusAccepted RequestStatus = "Accepted"
	StatusRejected RequestStatus = "Rejected"
)

// Availability is the owner's single current rental window.
type Availability struct {
	FromDate string `bson:"fromDate" json:"fromDate"`
	ToDate   string `bson:"toDate" json:"toDate"`
	FromTime string `bson:"fromTime" json:"fromTime"`
	ToTime   string `bson:"toTime" json:"toTime"`
}

// RequestEntry is one rental request held in an account's ledger.
// On an owner account it snapshots the rentee at request time. On a rentee
// account it is the mirror written on acceptance, carrying OwnerID.
type RequestEntry struct {
	RenteeID      string        `bson:"renteeId,omitempty" json:"renteeId,omitempty"`
	RenteeName    string        `bson:"renteeName,omitempty" json:"renteeName,omitempty"`
	RenteeAddress string        `bson:"renteeAddress,omitempty" json:"renteeAddress,omitempty"`
	RenteePhone   string        `bson:"renteePhone,omitempty" json:"renteePhone,omitempty"`
	RequestDate   time.Time     `bson:"requestDate" json:"requestDate"`
	Status        RequestStatus `bson:"status" json:"status"`
	BookingID     string        `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	OwnerID       string        `bson:"ownerId,omitempty" json:"ownerId,omitempty"`
	UpdatedBy     string        `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// Account is an owner or a rentee. Owner-only fields stay empty for rentees.
type Account struct {
	UserID       string `bson:"userId" json:"userId"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"password" json:"-"`
	Phone        string `bson:"phone" json:"phone"`
	Role         Role   `bson:"role" json:"role"`
	Address      string `bson:"address" json:"address"`
	Pincode      string `bson:"pincode" json:"pincode"`

	LicenseNumber string        `bson:"licenseNumber,omitempty" json:"licenseNumber,omitempty"`
	AadharNumber  string        `bson:"aadharNumber,omitempty" json:"aadharNumber,omitempty"`
	CarModel      string        `bson:"carModel,omitempty" json:"carModel,omitempty"`
	CarYear       int           `bson:"carYear,omitempty" json:"carYear,omitempty"`
	Price         float64       `bson:"price,omitempty" json:"price,omitempty"` // per km
	Availability  *Availability `bson:"availability,omitempty" json:"availability,omitempty"`

	Requests  []RequestEntry `bson:"requests" json:"requests"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
}

// FindRequestByBookingID returns the ledger entry carrying bookingID.
func (a *Account) FindRequestByBookingID(bookingID string) (*RequestEntry, bool) {
	for i := range a.Requests {
		if a.Requests[i].BookingID == bookingID {
			return &a.Requests[i], true
		}
	}
	return nil, false
}

// PublicRenter is what search exposes about an owner.
type PublicRenter struct {
	UserID       string        `json:"userId"`
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	CarModel     string        `json:"carModel"`
	Price        float64       `json:"price"`
	Availability *Availability `json:"availability"`
}

// MechanicBooking is an accepted booking as seen by an area mechanic.
type MechanicBooking struct {
	RenterID      string    `json:"renterId"`
	RenterName    string    `json:"renterName"`
	RenterAddress string    `json:"renterAddress"`
	RenterPhone   string    `json:"renterPhone"`
	BookingID     string    `json:"bookingId"`
	RenteeID      string    `json:"renteeId"`
	RenteePhone   string    `json:"renteePhone"`
	RequestDate   time.Time `json:"requestDate"`
}

// RequestStatusView is one of a rentee's requests as seen by that rentee.
type RequestStatusView struct {
	OwnerID   string        `json:"ownerId"`
	Status    RequestStatus `json:"status"`
	BookingID string        `json:"bookingId,omitempty"`
}

// BookingDetails summarises an owner ledger entry by booking id.
type BookingDetails struct {
	OwnerID   string        `json:"ownerId"`
	RenteeID  string        `json:"renteeId"`
	BookingID string        `json:"bookingId"`
	Status    RequestStatus `json:"status"`
	Date      time.Time     `json:"date"`
}
