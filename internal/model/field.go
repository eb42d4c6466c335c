package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FieldName identifies a common field.
type FieldName string

// Common field names, in output order.
const (
	FieldCompanyName        FieldName = "company_name"
	FieldFiscalPeriod       FieldName = "fiscal_period"
	FieldFiscalYear         FieldName = "fiscal_year"
	FieldAccountingStandard FieldName = "accounting_standard"
	FieldCurrencyUnit       FieldName = "currency_unit"
	FieldRevenue            FieldName = "kpi_revenue"
	FieldOperatingIncome    FieldName = "kpi_operating_income"
	FieldOrdinaryIncome     FieldName = "kpi_ordinary_income"
	FieldNetIncome          FieldName = "kpi_net_income"
	FieldEBITDA             FieldName = "kpi_ebitda"
)

// FieldOrder is the fixed order in which common fields are extracted,
// serialized and rendered.
var FieldOrder = []FieldName{
	FieldCompanyName,
	FieldFiscalPeriod,
	FieldFiscalYear,
	FieldAccountingStandard,
	FieldCurrencyUnit,
	FieldRevenue,
	FieldOperatingIncome,
	FieldOrdinaryIncome,
	FieldNetIncome,
	FieldEBITDA,
}

var fieldLabels = map[FieldName]string{
	FieldCompanyName:        "Company name",
	FieldFiscalPeriod:       "Fiscal period",
	FieldFiscalYear:         "Fiscal year",
	FieldAccountingStandard: "Accounting standard",
	FieldCurrencyUnit:       "Currency / unit",
	FieldRevenue:            "Revenue",
	FieldOperatingIncome:    "Operating income",
	FieldOrdinaryIncome:     "Ordinary income",
	FieldNetIncome:          "Net income",
	FieldEBITDA:             "EBITDA",
}

// Label returns a human-readable name for the field.
func (n FieldName) Label() string {
	if l, ok := fieldLabels[n]; ok {
		return l
	}
	return string(n)
}

// IsKPI reports whether the field holds a headline figure.
func (n FieldName) IsKPI() bool {
	return strings.HasPrefix(string(n), "kpi_")
}

// Value is a field value: either a string or a number.
type Value struct {
	str   string
	num   float64
	isNum bool
}

// StringValue wraps a string.
func StringValue(s string) *Value {
	return &Value{str: s}
}

// NumberValue wraps a number.
func NumberValue(f float64) *Value {
	return &Value{num: f, isNum: true}
}

// IsNumber reports whether the value is numeric.
func (v *Value) IsNumber() bool {
	return v != nil && v.isNum
}

// Number returns the numeric value and whether the value is numeric.
func (v *Value) Number() (float64, bool) {
	if v == nil || !v.isNum {
		return 0, false
	}
	return v.num, true
}

// String returns the value as plain text. Numbers use the shortest
// representation without exponent.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	if v.isNum {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// Display returns the value formatted for readers. Numbers get thousands
// separators.
func (v *Value) Display() string {
	if !v.IsNumber() {
		return v.String()
	}
	return GroupDigits(v.String())
}

// Equal reports whether two values hold the same content.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.isNum != o.isNum {
		return false
	}
	if v.isNum {
		return v.num == o.num
	}
	return v.str == o.str
}

// MarshalJSON encodes the value as a JSON string or number.
func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	if v.isNum {
		return []byte(v.String()), nil
	}
	return json.Marshal(v.str)
}

// UnmarshalJSON decodes a JSON string or number.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = Value{str: t}
	case float64:
		*v = Value{num: t, isNum: true}
	default:
		return fmt.Errorf("unsupported field value %s", string(data))
	}
	return nil
}

// GroupDigits inserts thousands separators into a plain decimal string such
// as "-1234567.5".
func GroupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}

// Field is a single common field. Value and Citation are either both set
// or both nil.
type Field struct {
	Name     FieldName `json:"-"`
	Value    *Value    `json:"value"`
	Citation *Citation `json:"citation"`
}

// Found returns a sourced field.
func Found(name FieldName, value *Value, citation Citation) Field {
	return Field{Name: name, Value: value, Citation: &citation}
}

// NotFound returns an absent field.
func NotFound(name FieldName) Field {
	return Field{Name: name}
}

// IsNull reports whether the field has no value.
func (f Field) IsNull() bool {
	return f.Value == nil
}

// Validate checks the null-citation invariant and, when store is non-nil,
// that the citation points at existing pages.
func (f Field) Validate(store *PageStore) error {
	if (f.Value == nil) != (f.Citation == nil) {
		return fmt.Errorf("%s: %w", f.Name, ErrFieldInvariant)
	}
	if f.Citation == nil || store == nil {
		return nil
	}
	if err := f.Citation.Validate(store); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return nil
}

// CommonInfo is the ordered set of common fields for a document.
type CommonInfo struct {
	fields []Field
}

// NewCommonInfo builds a CommonInfo. Fields keep the given order; a field
// named twice keeps its first occurrence.
func NewCommonInfo(fields ...Field) *CommonInfo {
	out := make([]Field, 0, len(fields))
	seen := make(map[FieldName]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	return &CommonInfo{fields: out}
}

// Fields returns a copy of the fields in order.
func (c *CommonInfo) Fields() []Field {
	if c == nil {
		return nil
	}
	return slices.Clone(c.fields)
}

// Field looks up a field by name.
func (c *CommonInfo) Field(name FieldName) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	for _, f := range c.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsNull reports whether the named field is absent or has no value.
func (c *CommonInfo) IsNull(name FieldName) bool {
	f, ok := c.Field(name)
	return !ok || f.IsNull()
}

// Validate checks every field. All violations are reported.
func (c *CommonInfo) Validate(store *PageStore) error {
	var errs []error
	for _, f := range c.Fields() {
		if err := f.Validate(store); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON writes the fields as a JSON object in field order.
func (c *CommonInfo) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(f.Name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of fields. Known fields come back in
// FieldOrder; unknown ones follow in name order.
func (c *CommonInfo) UnmarshalJSON(data []byte) error {
	raw := make(map[string]Field)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make([]Field, 0, len(raw))
	for _, name := range FieldOrder {
		if f, ok := raw[string(name)]; ok {
			f.Name = name
			fields = append(fields, f)
			delete(raw, string(name))
		}
	}
	rest := make([]string, 0, len(raw))
	for k := range raw {
		rest = append(rest, k)
	}
	slices.Sort(rest)
	for _, k := range rest {
		f := raw[k]
		f.Name = FieldName(k)
		fields = append(fields, f)
	}
	c.fields = fields
	return nil
}
