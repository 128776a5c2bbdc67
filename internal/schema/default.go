package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func intPtr(v int) *int { return &v }

// Default returns the built-in applicant questionnaire.
func Default() *Schema {
	s, err := New(
		FieldDefinition{Name: "full_name", Order: 1, Kind: KindText, Required: true, MinLen: 2,
			Label: "Full name", Prompt: "Enter your full name (last name, first name, patronymic):"},
		FieldDefinition{Name: "age", Order: 2, Kind: KindNumber, Required: true, Min: intPtr(0), Max: intPtr(150),
			Label: "Age", Prompt: "Enter your age:"},
		FieldDefinition{Name: "phone", Order: 3, Kind: KindPhone, Required: true,
			Label: "Phone", Prompt: "Enter your phone number:"},
		FieldDefinition{Name: "email", Order: 4, Kind: KindEmail, Required: true,
			Label: "Email", Prompt: "Enter your email:"},
		FieldDefinition{Name: "education", Order: 5, Kind: KindFreeText, Required: true,
			Label: "Education", Prompt: "Describe your education:"},
		FieldDefinition{Name: "work_experience", Order: 6, Kind: KindFreeText, Required: true,
			Label: "Work experience", Prompt: "Describe your work experience:"},
		FieldDefinition{Name: "skills", Order: 7, Kind: KindFreeText,
			Label: "Skills", Prompt: "Describe your skills:"},
		FieldDefinition{Name: "interests", Order: 8, Kind: KindFreeText,
			Label: "Interests", Prompt: "Describe your interests:"},
		FieldDefinition{Name: "goals", Order: 9, Kind: KindFreeText,
			Label: "Goals", Prompt: "Describe your goals:"},
		FieldDefinition{Name: "additional_info", Order: 10, Kind: KindFreeText,
			Label: "Additional information", Prompt: "Anything else (optional):"},
	)
	if err != nil {
		panic(fmt.Sprintf("default schema: %v", err))
	}
	return s
}

type fileSchema struct {
	Fields []FieldDefinition `yaml:"fields"`
}

// LoadFile reads a YAML document of the form `fields: [{name, order, kind, ...}]`.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var doc fileSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	s, err := New(doc.Fields...)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return s, nil
}
