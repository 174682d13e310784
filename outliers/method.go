package outliers

import (
	"strconv"
	"strings"
)

// Method selects the outlier criterion.
type Method int

// Supported methods.
const (
	StdDev Method = iota + 1
	Percentiles
	ZScore
	IQR
	IsolationForest
)

var methods = []struct {
	m    Method
	name string
}{
	{StdDev, "std_dev"},
	{Percentiles, "percentiles"},
	{ZScore, "z_score"},
	{IQR, "iqr"},
	{IsolationForest, "isolation_forest"},
}

// ParseMethod returns the Method for name.
func ParseMethod(name string) (Method, error) {
	for _, e := range methods {
		if e.name == name {
			return e.m, nil
		}
	}
	return 0, &InvalidMethodError{Method: name}
}

func (m Method) String() string {
	for _, e := range methods {
		if e.m == m {
			return e.name
		}
	}
	return "Method(" + strconv.Itoa(int(m)) + ")"
}

// valid reports whether m is one of the supported methods.
func (m Method) valid() bool {
	return m >= StdDev && m <= IsolationForest
}

func methodNames() string {
	names := make([]string, len(methods))
	for i, e := range methods {
		names[i] = e.name
	}
	return strings.Join(names, ", ")
}
