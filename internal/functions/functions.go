// Package functions guarda as funções escalares que o planner aceita em SELECT,
// WHERE, ON e ORDER BY. Todas recebem um texto e devolvem um texto ou NULL.
package functions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFunction indica uma função que não está registrada.
var ErrUnknownFunction = errors.New("functions: função desconhecida")

// Scalar é uma função texto → texto. ok=false produz NULL.
type Scalar struct {
	Name string
	Fn   func(string) (string, bool)
}

var registry = map[string]Scalar{
	"extract_city":    {Name: "extract_city", Fn: ExtractCity},
	"extract_country": {Name: "extract_country", Fn: ExtractCountry},
}

// Lookup resolve name sem diferenciar maiúsculas.
func Lookup(name string) (Scalar, error) {
	fn, ok := registry[strings.ToLower(name)]
	if !ok {
		return Scalar{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn, nil
}

// Names lista as funções registradas, em ordem.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addressFields separa um endereço "rua, cep, cidade, estado, país" respeitando aspas.
func addressFields(addr string) ([]string, bool) {
	r := csv.NewReader(strings.NewReader(addr))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, false
	}
	return fields, true
}

// ExtractCity devolve o antepenúltimo campo do endereço, sem espaços nas pontas.
func ExtractCity(addr string) (string, bool) {
	fields, ok := addressFields(addr)
	if !ok || len(fields) < 3 {
		return "", false
	}
	return strings.TrimSpace(fields[len(fields)-3]), true
}

// ExtractCountry devolve o último campo do endereço (código do país).
func ExtractCountry(addr string) (string, bool) {
	fields, ok := addressFields(addr)
	if !ok || len(fields) == 0 {
		return "", false
	}
	return strings.TrimSpace(fields[len(fields)-1]), true
}
