package models

// Mechanic services accepted bookings within one pincode.
type Mechanic struct {
	UserID       string `bson:"userId" json:"userId" yaml:"userId"`
	Name         string `bson:"name,omitempty" json:"name,omitempty" yaml:"name"`
	PasswordHash string `bson:"password" json:"-" yaml:"-"`
	Pincode      string `bson:"pincode" json:"pincode" yaml:"pincode"`
}
