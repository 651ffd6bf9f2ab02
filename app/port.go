package app

import (
	"fmt"
	"sort"
	"strings"

	"rtk/arch"
	"rtk/arch/avr"
	"rtk/arch/cortexm"
	"rtk/arch/riscv"
)

var ports = map[string]func() arch.Port{
	"cortex-m": func() arch.Port { return cortexm.New() },
	"riscv":    func() arch.Port { return riscv.New() },
	"avr":      func() arch.Port { return avr.New() },
}

// Arches lists the accepted NewPort names.
func Arches() []string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPort returns a fresh core for the named architecture. Matching is
// case-insensitive and "riscv32" is accepted for "riscv".
func NewPort(name string) (arch.Port, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "riscv32" {
		name = "riscv"
	}
	if name == "" {
		name = "cortex-m"
	}
	mk, ok := ports[name]
	if !ok {
		return nil, fmt.Errorf("app: unknown arch %q (want one of %s)", name, strings.Join(Arches(), ", "))
	}
	return mk(), nil
}
