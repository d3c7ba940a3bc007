package configs

// Configurable is implemented by values that can be set from config files.
// ConfigPath is the CUE path the value is read from.
type Configurable interface {
	ConfigPath() string
}

// Values returns every value of c found in loader, in file order.
func Values[T Configurable](loader Loader) []T {
	var zero T
	var ret []T
	for v := range All[T](loader, zero.ConfigPath()) {
		ret = append(ret, v)
	}
	return ret
}
