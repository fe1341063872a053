package models

// EmailTemplate defines the structure for email templates stored in the DB.
type EmailTemplate struct {
	TemplateID string `bson:"template_id" json:"template_id"` // e.g., "booking_confirmation", "rental_bill"
	Locale     string `bson:"locale" json:"locale"`           // e.g., "en-IN"
	Subject    string `bson:"subject" json:"subject"`         // text/template
	Body       string `bson:"body" json:"body"`               // html/template
}
