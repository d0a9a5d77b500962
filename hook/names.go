/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package hook

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"unicode"
)

var closureName = regexp.MustCompile(`^func\d+$`)

// symbolOf returns the qualified Go symbol behind a link function. Links
// that are not functions are described by their type and report false.
func symbolOf(l Link) (string, bool) {
	v := reflect.ValueOf(l)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", l), false
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", l), false
	}
	return strings.TrimSuffix(fn.Name(), "-fm"), true
}

func isNilLink(l Link) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	switch v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// inferName turns "example.com/shop/tax.GetPrice" into "get_price".
// Closures have no usable name.
func inferName(symbol string) (string, bool) {
	if strings.ContainsAny(symbol, "[]") {
		return "", false
	}
	if i := strings.LastIndex(symbol, "/"); i >= 0 {
		symbol = symbol[i+1:]
	}
	i := strings.LastIndex(symbol, ".")
	if i < 0 {
		return "", false
	}
	base := symbol[i+1:]
	if base == "" || !unicode.IsLetter([]rune(base)[0]) || closureName.MatchString(base) {
		return "", false
	}
	return snakeCase(base), true
}

func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
