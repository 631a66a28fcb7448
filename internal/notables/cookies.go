package notables

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCookies reads a session cookie file exported from a browser login.
// Two formats are accepted: the devtools export (a list of name/value
// objects) and a flat name -> value map.
func LoadCookies(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}

	var list []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		cookies := make(map[string]string, len(list))
		for _, c := range list {
			if c.Name != "" {
				cookies[c.Name] = c.Value
			}
		}
		return cookies, nil
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode cookies file %s: %w", path, err)
	}
	return m, nil
}
