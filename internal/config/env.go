package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Switch is a flag that is on whenever its variable is present, unless the
// value is a recognised false ("false", "0", "f"). EXTERNAL_HAS_TLS= and
// EXTERNAL_HAS_TLS=yes both enable it.
type Switch bool

func (s *Switch) Decode(value string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		*s = true
		return nil
	}
	*s = Switch(v)
	return nil
}

// Int is an integer setting whose variable may be present but empty, in which
// case the value from the defaults or the config file is kept.
type Int int

func (i *Int) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not an integer", value)
	}
	*i = Int(n)
	return nil
}
