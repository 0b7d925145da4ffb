/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package source

import "context"

// Fetcher is a source client. Fetch never blocks past the client's timeout
// and returns either a payload or a *Error.
type Fetcher[T any] interface {
	Name() string
	Fetch(ctx context.Context) (T, error)
}

// FetchFunc adapts a function into a Fetcher.
type FetchFunc[T any] struct {
	SourceName string
	Fn         func(ctx context.Context) (T, error)
}

func (f FetchFunc[T]) Name() string {
	return f.SourceName
}

func (f FetchFunc[T]) Fetch(ctx context.Context) (T, error) {
	v, err := f.Fn(ctx)

	return v, Wrap(f.SourceName, err)
}

// Map runs a pure conversion over another fetcher's payload. The poller behind
// it therefore holds canonical records rather than native payloads.
func Map[In, Out any](f Fetcher[In], convert func(In) Out) Fetcher[Out] {
	return FetchFunc[Out]{
		SourceName: f.Name(),
		Fn: func(ctx context.Context) (Out, error) {
			in, err := f.Fetch(ctx)
			if err != nil {
				var zero Out

				return zero, err
			}

			return convert(in), nil
		},
	}
}
