package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

var placeholderPattern = regexp.MustCompile(`(?i)\{\{(name|email|totalspends|visitcount)\}\}`)

// Personalize replaces the {{name}}, {{email}}, {{totalSpends}} and
// {{visitCount}} placeholders in template, ignoring case. Unknown
// placeholders are left as they are.
func Personalize(template string, customer *models.Customer) string {
	if customer == nil {
		customer = &models.Customer{}
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		switch strings.ToLower(token[2 : len(token)-2]) {
		case "name":
			return customer.Name
		case "email":
			return customer.Email
		case "totalspends":
			return strconv.FormatFloat(customer.TotalSpends, 'f', -1, 64)
		default:
			return strconv.Itoa(customer.VisitCount)
		}
	})
}
