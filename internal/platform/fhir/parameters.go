package fhir

// Parameters is the FHIR Parameters resource used for operation input and output.
type Parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []Parameter `json:"parameter"`
}

// Parameter is one named value (or group of parts) of a Parameters resource.
type Parameter struct {
	Name         string      `json:"name"`
	ValueBoolean *bool       `json:"valueBoolean,omitempty"`
	ValueString  string      `json:"valueString,omitempty"`
	ValueCode    string      `json:"valueCode,omitempty"`
	ValueURI     string      `json:"valueUri,omitempty"`
	ValueDecimal *float64    `json:"valueDecimal,omitempty"`
	ValueCoding  *Coding     `json:"valueCoding,omitempty"`
	Part         []Parameter `json:"part,omitempty"`
}

func NewParameters() *Parameters {
	return &Parameters{ResourceType: "Parameters"}
}

func (p *Parameters) Add(param Parameter) *Parameters {
	p.Parameter = append(p.Parameter, param)
	return p
}

// Get returns the first parameter with the given name.
func (p *Parameters) Get(name string) (Parameter, bool) {
	for _, param := range p.Parameter {
		if param.Name == name {
			return param, true
		}
	}
	return Parameter{}, false
}

// String returns the primitive value of the named parameter regardless of
// which value[x] carried it.
func (p *Parameters) String(name string) string {
	param, ok := p.Get(name)
	if !ok {
		return ""
	}
	switch {
	case param.ValueCode != "":
		return param.ValueCode
	case param.ValueURI != "":
		return param.ValueURI
	case param.ValueString != "":
		return param.ValueString
	case param.ValueCoding != nil:
		return param.ValueCoding.Code
	}
	return ""
}

func BoolParam(name string, v bool) Parameter {
	return Parameter{Name: name, ValueBoolean: &v}
}

func StringParam(name, v string) Parameter {
	return Parameter{Name: name, ValueString: v}
}

func CodeParam(name, v string) Parameter {
	return Parameter{Name: name, ValueCode: v}
}

func DecimalParam(name string, v float64) Parameter {
	return Parameter{Name: name, ValueDecimal: &v}
}

func CodingParam(name string, c Coding) Parameter {
	return Parameter{Name: name, ValueCoding: &c}
}
