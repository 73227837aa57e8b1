/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the dynamic type of a stored Value.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindUint
	KindString
	KindBool
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindStrings:
		return "strings"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the store's dynamic value. Exactly one payload field is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Uint uint64
	Str  string
	Bool bool
	Strs []string
}

func Int(v int64) Value        { return Value{Kind: KindInt, Int: v} }
func Uint(v uint64) Value      { return Value{Kind: KindUint, Uint: v} }
func String(v string) Value    { return Value{Kind: KindString, Str: v} }
func Bool(v bool) Value        { return Value{Kind: KindBool, Bool: v} }
func Strings(v []string) Value { return Value{Kind: KindStrings, Strs: append([]string{}, v...)} }

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindStrings:
		return fmt.Sprint(v.Strs)
	default:
		return "<invalid>"
	}
}

// encode returns the column representation of v.
func (v Value) encode() (any, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindUint:
		if v.Uint > 1<<63-1 {
			return nil, fmt.Errorf("uint value %d overflows storage", v.Uint)
		}
		return int64(v.Uint), nil
	case KindString:
		return v.Str, nil
	case KindBool:
		if v.Bool {
			return int64(1), nil
		}
		return int64(0), nil
	case KindStrings:
		strs := v.Strs
		if strs == nil {
			strs = []string{}
		}
		b, err := json.Marshal(strs)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("cannot store value of %s", v.Kind)
	}
}

func decode(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindInt, KindUint, KindBool:
		n, err := asInt64(raw)
		if err != nil {
			return Value{}, err
		}
		switch kind {
		case KindInt:
			return Int(n), nil
		case KindUint:
			return Uint(uint64(n)), nil
		default:
			return Bool(n != 0), nil
		}
	case KindString:
		s, err := asString(raw)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case KindStrings:
		s, err := asString(raw)
		if err != nil {
			return Value{}, err
		}
		var strs []string
		if err := json.Unmarshal([]byte(s), &strs); err != nil {
			return Value{}, fmt.Errorf("decode string list: %w", err)
		}
		return Value{Kind: KindStrings, Strs: strs}, nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %d", kind)
	}
}

func asInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected integer column type %T", raw)
	}
}

func asString(raw any) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected text column type %T", raw)
	}
}
