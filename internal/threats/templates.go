package threats

// Category groups threats by where the exposure was found.
type Category string

const (
	CategoryPeopleSearch    Category = "people_search_sites"
	CategorySocialMedia     Category = "social_media"
	CategoryBackgroundCheck Category = "background_check"
	CategoryDataBreaches    Category = "data_breaches"
	CategoryFinancial       Category = "financial"
)

// Severity ranks how damaging an exposure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Difficulty estimates the effort to get an exposure removed.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very_hard"
)

// RemovalMethod is how a removal request is filed.
type RemovalMethod string

const (
	MethodSelfService     RemovalMethod = "self_service"
	MethodEmailRequest    RemovalMethod = "email_request"
	MethodContactRequired RemovalMethod = "contact_required"
	MethodLegalRequired   RemovalMethod = "legal_required"
	MethodManualProcess   RemovalMethod = "manual_process"
)

// Exposed data field names understood by the value synthesizer.
const (
	FieldFullName          = "full_name"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldAddress           = "address"
	FieldAge               = "age"
	FieldRelatives         = "relatives"
	FieldPreviousAddresses = "previous_addresses"
	FieldEmployer          = "employer"
	FieldEducation         = "education"
	FieldProfilePhoto      = "profile_photo"
	FieldUsername          = "username"
	FieldCriminalRecords   = "criminal_records"
	FieldCourtRecords      = "court_records"
	FieldPasswordHash      = "password_hash"
	FieldBreachDate        = "breach_date"
	FieldIPAddress         = "ip_address"
	FieldPropertyRecords   = "property_records"
	FieldLiens             = "liens"
	FieldBankruptcies      = "bankruptcies"
)

// Template describes one kind of exposure a category can produce.
// Title and Description may contain {site}, {firstName}, {lastName},
// {email} and {fullName} placeholders.
type Template struct {
	ThreatType        string
	Title             string
	Description       string
	Severity          Severity
	BaseConfidence    int
	ExposedData       []string
	RemovalDifficulty Difficulty
	RemovalMethod     RemovalMethod
}

var templates = map[Category][]Template{
	CategoryPeopleSearch: {
		{
			ThreatType:        "personal_profile",
			Title:             "Personal profile listed on {site}",
			Description:       "{site} publishes a profile for {fullName} including home address and phone number.",
			Severity:          SeverityHigh,
			BaseConfidence:    85,
			ExposedData:       []string{FieldFullName, FieldAddress, FieldPhone, FieldAge, FieldRelatives},
			RemovalDifficulty: DifficultyEasy,
			RemovalMethod:     MethodSelfService,
		},
		{
			ThreatType:        "address_history",
			Title:             "Address history exposed on {site}",
			Description:       "Current and previous addresses for {firstName} {lastName} are searchable on {site}.",
			Severity:          SeverityMedium,
			BaseConfidence:    78,
			ExposedData:       []string{FieldFullName, FieldAddress, FieldPreviousAddresses},
			RemovalDifficulty: DifficultyMedium,
			RemovalMethod:     MethodEmailRequest,
		},
		{
			ThreatType:        "contact_details",
			Title:             "Contact details sold by {site}",
			Description:       "{site} lists {email} and a phone number linked to {fullName}.",
			Severity:          SeverityHigh,
			BaseConfidence:    82,
			ExposedData:       []string{FieldFullName, FieldEmail, FieldPhone},
			RemovalDifficulty: DifficultyMedium,
			RemovalMethod:     MethodContactRequired,
		},
	},
	CategorySocialMedia: {
		{
			ThreatType:        "public_profile",
			Title:             "Public {site} profile indexed",
			Description:       "A public {site} profile for {fullName} exposes photos and employer details.",
			Severity:          SeverityLow,
			BaseConfidence:    72,
			ExposedData:       []string{FieldFullName, FieldProfilePhoto, FieldEmployer, FieldUsername},
			RemovalDifficulty: DifficultyEasy,
			RemovalMethod:     MethodManualProcess,
		},
		{
			ThreatType:        "location_sharing",
			Title:             "Location data visible on {site}",
			Description:       "Posts on {site} reveal where {firstName} lives and works.",
			Severity:          SeverityMedium,
			BaseConfidence:    65,
			ExposedData:       []string{FieldFullName, FieldAddress, FieldEmployer},
			RemovalDifficulty: DifficultyMedium,
			RemovalMethod:     MethodManualProcess,
		},
		{
			ThreatType:        "account_linkage",
			Title:             "{site} account linked to your email",
			Description:       "{email} is associated with a {site} account that can be discovered by search.",
			Severity:          SeverityMedium,
			BaseConfidence:    70,
			ExposedData:       []string{FieldEmail, FieldUsername, FieldEducation},
			RemovalDifficulty: DifficultyMedium,
			RemovalMethod:     MethodSelfService,
		},
	},
	CategoryBackgroundCheck: {
		{
			ThreatType:        "background_report",
			Title:             "Background report available on {site}",
			Description:       "{site} sells a background report on {fullName} covering court and criminal records.",
			Severity:          SeverityCritical,
			BaseConfidence:    88,
			ExposedData:       []string{FieldFullName, FieldAge, FieldAddress, FieldCriminalRecords, FieldCourtRecords},
			RemovalDifficulty: DifficultyHard,
			RemovalMethod:     MethodEmailRequest,
		},
		{
			ThreatType:        "employment_screening",
			Title:             "Employment screening data on {site}",
			Description:       "Employment and education history for {firstName} {lastName} is offered by {site}.",
			Severity:          SeverityHigh,
			BaseConfidence:    75,
			ExposedData:       []string{FieldFullName, FieldEmployer, FieldEducation},
			RemovalDifficulty: DifficultyVeryHard,
			RemovalMethod:     MethodLegalRequired,
		},
	},
	CategoryDataBreaches: {
		{
			ThreatType:        "credential_leak",
			Title:             "Credentials exposed in {site}",
			Description:       "{email} appears in the {site} dataset together with a password hash.",
			Severity:          SeverityCritical,
			BaseConfidence:    92,
			ExposedData:       []string{FieldEmail, FieldPasswordHash, FieldBreachDate},
			RemovalDifficulty: DifficultyVeryHard,
			RemovalMethod:     MethodManualProcess,
		},
		{
			ThreatType:        "personal_data_leak",
			Title:             "Personal data leaked in {site}",
			Description:       "The {site} incident exposed {fullName}'s email, phone and IP address.",
			Severity:          SeverityHigh,
			BaseConfidence:    86,
			ExposedData:       []string{FieldFullName, FieldEmail, FieldPhone, FieldIPAddress, FieldBreachDate},
			RemovalDifficulty: DifficultyVeryHard,
			RemovalMethod:     MethodContactRequired,
		},
	},
	CategoryFinancial: {
		{
			ThreatType:        "property_record",
			Title:             "Property ownership published by {site}",
			Description:       "{site} lists property owned by {fullName} with the purchase address.",
			Severity:          SeverityMedium,
			BaseConfidence:    80,
			ExposedData:       []string{FieldFullName, FieldAddress, FieldPropertyRecords},
			RemovalDifficulty: DifficultyHard,
			RemovalMethod:     MethodLegalRequired,
		},
		{
			ThreatType:        "financial_filing",
			Title:             "Financial filings indexed by {site}",
			Description:       "Liens or bankruptcy filings naming {firstName} {lastName} are searchable on {site}.",
			Severity:          SeverityHigh,
			BaseConfidence:    74,
			ExposedData:       []string{FieldFullName, FieldLiens, FieldBankruptcies},
			RemovalDifficulty: DifficultyVeryHard,
			RemovalMethod:     MethodLegalRequired,
		},
	},
}

// Templates returns the template library for a category.
func Templates(c Category) []Template {
	out := make([]Template, len(templates[c]))
	copy(out, templates[c])
	return out
}

var severityWeights = map[Severity]float64{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityWeight maps a severity onto 1..4; unknown severities weigh 1.
func SeverityWeight(s Severity) float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return 1
}

// PriorityScore combines severity and confidence into a sort key.
func PriorityScore(s Severity, confidence int) float64 {
	return SeverityWeight(s) * (float64(confidence) / 100) * 100
}
