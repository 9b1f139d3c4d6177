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

package cli

import (
	"strconv"

	"github.com/carverauto/aqualevel/pkg/models"
)

// optFloat is a flag that is only set when given on the command line.
type optFloat struct{ dst **float64 }

func (o optFloat) String() string {
	if o.dst == nil || *o.dst == nil {
		return ""
	}

	return strconv.FormatFloat(**o.dst, 'f', -1, 64)
}

func (o optFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*o.dst = models.Float(v)

	return nil
}

type optInt struct{ dst **int }

func (o optInt) String() string {
	if o.dst == nil || *o.dst == nil {
		return ""
	}

	return strconv.Itoa(**o.dst)
}

func (o optInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}

	*o.dst = models.Int(v)

	return nil
}

type optBool struct{ dst **bool }

func (o optBool) String() string {
	if o.dst == nil || *o.dst == nil {
		return ""
	}

	return strconv.FormatBool(**o.dst)
}

func (o optBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}

	*o.dst = models.Bool(v)

	return nil
}

func (optBool) IsBoolFlag() bool { return true }
