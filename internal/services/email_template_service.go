package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"carrental/backend/internal/models"
)

const (
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateRentalBill          = "rental_bill"

	DefaultLocale = "en-US"
)

// Built-in templates, used when email_templates has no override.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateBookingConfirmation: {
		TemplateID: TemplateBookingConfirmation,
		Locale:     DefaultLocale,
		Subject:    "Your Car Rental Booking Confirmation",
		Body: `<p>Dear {{.name}},</p>
<p>Your car rental is confirmed. The booking ID is <strong>{{.booking_id}}</strong>.</p>
<p>Our mechanic will contact you soon.</p>
<p>Thank you for using our service!</p>
`,
	},
	TemplateRentalBill: {
		TemplateID: TemplateRentalBill,
		Locale:     DefaultLocale,
		Subject:    "Your Rental Bill",
		Body: `<p>Dear {{.name}},</p>
<h3>Car Rental Bill</h3>
<table border="1" cellspacing="0" cellpadding="5">
  <tr><th>Booking ID</th><td>{{.booking_id}}</td></tr>
  <tr><th>Starting Km</th><td>{{.starting_km}}</td></tr>
  <tr><th>Ending Km</th><td>{{.ending_km}}</td></tr>
  <tr><th>Distance Covered</th><td>{{.distance}} Km</td></tr>
  <tr><th>Price per Km</th><td>{{.currency}}{{.price_per_km}}</td></tr>
  <tr><th>Bill Amount</th><td>{{.currency}}{{.bill_amount}}</td></tr>
  <tr><th>Service Charge (5%)</th><td>{{.currency}}{{.service_charge}}</td></tr>
  <tr><th>Total Amount</th><td>{{.currency}}{{.total_amount}}</td></tr>
  <tr><th>Payment Status</th><td>{{.payment_status}}</td></tr>
</table>
`,
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	// Render returns the subject (plain text) and HTML body of a template.
	Render(ctx context.Context, templateID, locale string, data map[string]interface{}) (string, string, error)
}

const emailTemplatesCollection = "email_templates"

var (
	// ErrTemplateNotFound means neither the database nor the built-ins have the template.
	ErrTemplateNotFound = errors.New("email template not found")
	// ErrTemplateInvalid means the template failed to parse or execute.
	ErrTemplateInvalid = errors.New("email template invalid")
)

// EmailTemplateService resolves templates from MongoDB, falling back to the
// built-in set. A nil database means built-ins only.
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate retrieves an email template by ID and locale
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	if s.db != nil {
		var template models.EmailTemplate
		filter := bson.M{"template_id": templateID, "locale": locale}
		err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
		if err == nil {
			return &template, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error retrieving template: %w", err)
		}
	}
	if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
		return &defaultTemplate, nil
	}
	return nil, fmt.Errorf("%w: %s (locale: %s)", ErrTemplateNotFound, templateID, locale)
}

// Render executes the subject with text/template and the body with
// html/template so data values are escaped in the HTML part only.
func (s *EmailTemplateService) Render(ctx context.Context, templateID, locale string, data map[string]interface{}) (string, string, error) {
	tmpl, err := s.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return "", "", err
	}

	subjectTmpl, err := texttemplate.New("subject").Option("missingkey=zero").Parse(tmpl.Subject)
	if err != nil {
		return "", "", fmt.Errorf("%w: subject of %s: %v", ErrTemplateInvalid, templateID, err)
	}
	var subject bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("%w: rendering subject of %s: %v", ErrTemplateInvalid, templateID, err)
	}

	bodyTmpl, err := htmltemplate.New("body").Option("missingkey=zero").Parse(tmpl.Body)
	if err != nil {
		return "", "", fmt.Errorf("%w: body of %s: %v", ErrTemplateInvalid, templateID, err)
	}
	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("%w: rendering body of %s: %v", ErrTemplateInvalid, templateID, err)
	}
	return subject.String(), body.String(), nil
}

// BookingConfirmationData is the template data of booking_confirmation.
func BookingConfirmationData(name, bookingID string) map[string]interface{} {
	return map[string]interface{}{
		"name":       name,
		"booking_id": bookingID,
	}
}

// BillData is the template data of rental_bill. Amounts are preformatted.
func BillData(name string, bill *models.Bill, currency string) map[string]interface{} {
	return map[string]interface{}{
		"name":           name,
		"currency":       currency,
		"booking_id":     bill.BookingID,
		"starting_km":    formatAmount(bill.StartingKm),
		"ending_km":      formatAmount(bill.EndingKm),
		"distance":       formatAmount(bill.Distance),
		"price_per_km":   formatAmount(bill.PricePerKm),
		"bill_amount":    fmt.Sprintf("%.2f", bill.BillAmount),
		"service_charge": fmt.Sprintf("%.2f", bill.ServiceCharge),
		"total_amount":   fmt.Sprintf("%.2f", bill.TotalAmount),
		"payment_status": bill.PaymentStatus(currency),
	}
}

// formatAmount prints whole numbers without decimals.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
