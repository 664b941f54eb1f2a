package output

import (
	"encoding/json"
)

// JSONFormatter renders reports as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatFetch renders a resolution summary as JSON.
func (f *JSONFormatter) FormatFetch(report *FetchReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatSources renders the cascade plan as a JSON array.
func (f *JSONFormatter) FormatSources(rows []SourceRow) (string, error) {
	if rows == nil {
		rows = []SourceRow{}
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
