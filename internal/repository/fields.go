/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"errors"
	"fmt"

	"barnacle/internal/graph"
)

// getField reads one field of the entity in its own read transaction.
func getField[T any](s *graph.Store, id EntityID, name string) (T, error) {
	var out T
	err := s.View(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		out, err = readField[T](tx, addr, name)
		return err
	})
	if err != nil {
		var zero T
		return zero, wrap("get "+name, err)
	}
	return out, nil
}

// setField writes one field of the entity in its own write transaction.
func setField[T any](s *graph.Store, id EntityID, name string, v T) error {
	err := s.Update(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		return writeField(tx, addr, name, v)
	})
	return wrap("set "+name, err)
}

// readField reads a field of a resolved node. A value of the wrong type means the stored
// data does not match the model, which is not recoverable.
func readField[T any](tx *graph.Tx, addr graph.ID, name string) (T, error) {
	var out T
	v, err := tx.Value(addr, name)
	if errors.Is(err, graph.ErrNotFound) {
		return out, corrupt("node %d has no field %q", addr, name)
	}
	if err != nil {
		return out, err
	}
	out, err = fromValue[T](v)
	if err != nil {
		panic(fmt.Sprintf("repository: field %q of node %d: %v", name, addr, err))
	}
	return out, nil
}

func writeField[T any](tx *graph.Tx, addr graph.ID, name string, v T) error {
	val, err := toValue(v)
	if err != nil {
		return err
	}
	return tx.SetValue(addr, name, val)
}

func fromValue[T any](v graph.Value) (T, error) {
	var out T
	want := func(k graph.Kind) error {
		if v.Kind != k {
			return fmt.Errorf("stored %s, want %s", v.Kind, k)
		}
		return nil
	}
	var err error
	switch p := any(&out).(type) {
	case *string:
		if err = want(graph.KindString); err == nil {
			*p = v.Str
		}
	case *bool:
		if err = want(graph.KindBool); err == nil {
			*p = v.Bool
		}
	case *int64:
		if err = want(graph.KindInt); err == nil {
			*p = v.Int
		}
	case *uint64:
		if err = want(graph.KindUint); err == nil {
			*p = v.Uint
		}
	case *Uid:
		if err = want(graph.KindUint); err == nil {
			*p = Uid(v.Uint)
		}
	case *[]string:
		if err = want(graph.KindStrings); err == nil {
			*p = append([]string{}, v.Strs...)
		}
	case *DeployKind:
		if err = want(graph.KindString); err == nil {
			*p, err = ParseDeployKind(v.Str)
		}
	default:
		err = fmt.Errorf("unsupported field type %T", out)
	}
	return out, err
}

func toValue(v any) (graph.Value, error) {
	switch x := v.(type) {
	case string:
		return graph.String(x), nil
	case bool:
		return graph.Bool(x), nil
	case int64:
		return graph.Int(x), nil
	case uint64:
		return graph.Uint(x), nil
	case Uid:
		return graph.Uint(uint64(x)), nil
	case []string:
		return graph.Strings(x), nil
	case DeployKind:
		return graph.String(x.String()), nil
	default:
		return graph.Value{}, fmt.Errorf("unsupported field type %T", v)
	}
}
