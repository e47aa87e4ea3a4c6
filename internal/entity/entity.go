// Package entity defines the sensitive-data vocabulary shared by the
// anonymization pipeline: the closed set of entity types, detected spans,
// deterministic alias tokens, and the original→alias mapping persisted
// alongside each ingested document.
package entity

// Type classifies the kind of sensitive data found in text.
type Type string

// Supported entity types. The first six are produced by structured
// pattern matching; the rest come from the pluggable entity classifier.
const (
	TypeEmail      Type = "EMAIL"
	TypePhone      Type = "PHONE"
	TypeSSN        Type = "SSN"
	TypeCreditCard Type = "CREDIT_CARD"
	TypeIPAddress  Type = "IP_ADDRESS"
	TypeDate       Type = "DATE"
	TypeName       Type = "NAME"
	TypeOrg        Type = "ORGANIZATION"
	TypeLocation   Type = "LOCATION"
	TypeFacility   Type = "FACILITY"
	TypeProduct    Type = "PRODUCT"
	TypeEvent      Type = "EVENT"
	TypeWorkOfArt  Type = "WORK_OF_ART"
	TypeLaw        Type = "LAW"
	TypeLanguage   Type = "LANGUAGE"
	TypeTime       Type = "TIME"
	TypePercent    Type = "PERCENT"
	TypeMoney      Type = "MONEY"
	TypeQuantity   Type = "QUANTITY"
	TypeOrdinal    Type = "ORDINAL"
	TypeCardinal   Type = "CARDINAL"
)

// AllTypes lists every supported entity type, in a fixed order suitable
// for pre-populating per-type counter maps.
var AllTypes = []Type{
	TypeEmail, TypePhone, TypeSSN, TypeCreditCard, TypeIPAddress, TypeDate,
	TypeName, TypeOrg, TypeLocation, TypeFacility, TypeProduct, TypeEvent,
	TypeWorkOfArt, TypeLaw, TypeLanguage, TypeTime, TypePercent, TypeMoney,
	TypeQuantity, TypeOrdinal, TypeCardinal,
}

// Valid reports whether t is one of the supported entity types.
func (t Type) Valid() bool {
	switch t {
	case TypeEmail, TypePhone, TypeSSN, TypeCreditCard, TypeIPAddress,
		TypeDate, TypeName, TypeOrg, TypeLocation, TypeFacility,
		TypeProduct, TypeEvent, TypeWorkOfArt, TypeLaw, TypeLanguage,
		TypeTime, TypePercent, TypeMoney, TypeQuantity, TypeOrdinal,
		TypeCardinal:
		return true
	}
	return false
}

// Span is a maximal detected sensitive span in a source text.
// Start and End are byte offsets into the text it was detected in;
// Text is the literal matched value.
type Span struct {
	Start int
	End   int
	Text  string
	Type  Type
}
