package richhistory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// DataSource is a resolved data source identity.
type DataSource struct {
	UID  string `json:"uid" yaml:"uid"`
	Name string `json:"name" yaml:"name"`
}

// DataSourceRef identifies a data source either by UID or by display name.
// Exactly one of the two is set; use RefByUID or RefByName to build one.
type DataSourceRef struct {
	UID  string `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
}

// RefByUID returns a reference to the data source with the given UID.
func RefByUID(uid string) DataSourceRef {
	return DataSourceRef{UID: uid}
}

// RefByName returns a reference to the data source with the given display name.
func RefByName(name string) DataSourceRef {
	return DataSourceRef{Name: name}
}

// IsZero reports whether the reference names nothing.
func (r DataSourceRef) IsZero() bool {
	return r.UID == "" && r.Name == ""
}

// String returns a human-readable form of the reference.
func (r DataSourceRef) String() string {
	if r.UID != "" {
		return "uid:" + r.UID
	}
	return "name:" + r.Name
}

// UnmarshalJSON accepts either an object ({"uid": "..."} or {"name": "..."})
// or a bare string, which is treated as a data source name.
func (r *DataSourceRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = RefByName(name)
		return nil
	}

	type plain DataSourceRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.UID != "" && p.Name != "" {
		return fmt.Errorf("data source reference must set uid or name, not both")
	}
	*r = DataSourceRef(p)
	return nil
}

// ParseDataSourceRef parses the textual forms accepted on the command line:
// "uid:<uid>", "name:<name>" or a bare name.
func ParseDataSourceRef(s string) DataSourceRef {
	switch {
	case len(s) > 4 && s[:4] == "uid:":
		return RefByUID(s[4:])
	case len(s) > 5 && s[:5] == "name:":
		return RefByName(s[5:])
	default:
		return RefByName(s)
	}
}

// Resolver maps a data source reference to its canonical identity.
// Implementations return ErrDataSourceNotFound for unknown references.
type Resolver interface {
	Resolve(ctx context.Context, ref DataSourceRef) (DataSource, error)
}
