package redact

// Credential-bearing headers. Header names are captured lower-cased.
var commonHeaderPaths = []string{
	"request.headers.authorization",
	"request.headers.cookie",
	"request.headers.x-csrf-token",
	"request.headers.x-xsrf-token",
	"request.headers.x-api-key",
	"request.headers.x-auth-token",
	"response.headers.set-cookie",
	"response.headers.authorization",
	"response.headers.www-authenticate",
}

var commonBodyPaths = []string{
	"request.body.password",
	"request.body.password_confirmation",
	"request.body.token",
	"request.body.access_token",
	"request.body.refresh_token",
	"request.body.api_key",
	"request.body.secret",
	"request.body.private_key",
	"request.body.credentials",
	"request.body.auth_token",
	"response.body.password",
	"response.body.token",
	"response.body.access_token",
	"response.body.refresh_token",
	"response.body.api_key",
	"response.body.secret",
	"response.body.private_key",
	"response.body.credentials",
	"response.body.auth_token",
	"request.body.*.password",
	"request.body.*.token",
	"request.body.*.api_key",
	"response.body.*.password",
	"response.body.*.token",
	"response.body.*.api_key",
}

// The compliance presets below are relative to a body; they are applied to
// both request.body and response.body.

var piiPaths = []string{
	"ssn", "social_security_number", "socialSecurityNumber",
	"ein", "tax_id", "taxId",
	"driver_license", "driverLicense",
	"passport", "passport_number",
	"date_of_birth", "dateOfBirth", "dob", "birth_date", "birthDate",
	"phone", "phone_number", "phoneNumber", "mobile", "mobile_number",
	"email", "email_address",
	"address", "street_address", "home_address", "billing_address", "shipping_address",
	"address.street", "address.city", "address.state", "address.zip", "address.postal_code",
	"personal.ssn", "personal.phone", "personal.email",
	"contact.phone", "contact.email",
	"user.email", "user.phone",
	"customer.email", "customer.phone",
	"users.*.email", "users.*.phone",
	"customers.*.email", "customers.*.phone",
}

var pciPaths = []string{
	"card_number", "cardNumber", "card.number",
	"payment.card_number", "payment.cardNumber",
	"card_cvv", "cardCvv", "cvv", "card.cvv", "payment.cvv",
	"card_expiry", "cardExpiry", "card.expiry", "payment.card_expiry",
	"expiry_date", "expiryDate",
	"card_holder", "cardHolder", "card.holder", "payment.card_holder",
	"pan", "primary_account_number",
	"track_data", "trackData", "magnetic_stripe", "chip_data", "pin",
	"payment.*.card_number", "payment.*.cvv",
	"cards.*.number", "cards.*.cvv",
	"**.card.number", "**.card.cvv", "**.card.expiry",
}

var hipaaPaths = []string{
	"patient_id", "patientId",
	"medical_record_number", "medicalRecordNumber", "mrn",
	"diagnosis", "condition", "medication", "treatment", "procedure",
	"lab_results", "labResults", "test_results", "testResults",
	"health_plan_id", "healthPlanId",
	"member_id", "memberId",
	"insurance_id", "insuranceId",
	"provider_id", "providerId",
	"npi", "national_provider_identifier",
	"medical_data", "medicalData", "health_data", "healthData",
	"phi", "protected_health_information",
	"patient.id", "patient.mrn", "patient.diagnosis", "patient.medication",
	"medical.patient_id", "medical.diagnosis", "medical.treatment",
	"health.patient_id", "health.condition",
	"patients.*.id", "patients.*.mrn", "patients.*.diagnosis",
	"medical_records.*.patient_id", "medical_records.*.diagnosis",
}

var bodyRoots = []string{"request.body", "response.body"}

// CommonHeaderFields redacts credential headers plus any extra paths.
func CommonHeaderFields(extra []string, r Replacement) (*DotNotation, error) {
	return NewDotNotation(concat(commonHeaderPaths, extra), r)
}

// CommonBodyFields redacts password and token fields in bodies plus any
// extra paths.
func CommonBodyFields(extra []string, r Replacement) (*DotNotation, error) {
	return NewDotNotation(concat(commonBodyPaths, extra), r)
}

// PII redacts personal identifiers inside request and response bodies.
// Extra paths are body-relative too.
func PII(extra []string, r Replacement) (*DotNotation, error) {
	return NewDotNotation(underBodies(concat(piiPaths, extra)), r)
}

// PCI redacts payment card data inside request and response bodies.
func PCI(extra []string, r Replacement) (*DotNotation, error) {
	return NewDotNotation(underBodies(concat(pciPaths, extra)), r)
}

// HIPAA redacts health information inside request and response bodies.
func HIPAA(extra []string, r Replacement) (*DotNotation, error) {
	return NewDotNotation(underBodies(concat(hipaaPaths, extra)), r)
}

func concat(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func underBodies(paths []string) []string {
	out := make([]string, 0, len(paths)*len(bodyRoots))
	for _, root := range bodyRoots {
		for _, p := range paths {
			out = append(out, root+"."+p)
		}
	}
	return out
}
