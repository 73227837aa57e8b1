/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"strings"
	"unicode"

	"github.com/stoewer/go-strcase"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// reserved are characters that are unsafe in a path segment on at least one platform.
var reserved = strings.NewReplacer("/", " ", "\\", " ", ":", " ", "*", " ", "?", " ",
	"\"", " ", "<", " ", ">", " ", "|", " ", ".", " ")

// dirName maps an entity name to its directory name: "Skyrim SE" becomes "skyrim_se"
// and "Pokémon" becomes "pokemon".
func dirName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	s := strings.Trim(strcase.SnakeCase(reserved.Replace(folded)), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
