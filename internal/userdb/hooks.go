// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"context"
	"time"

	"github.com/zcmd-io/zcmd/pkg/log"
)

type queryTimeKey struct{}

// hooks satisfies github.com/qustavo/sqlhooks/v2's Hooks interface, logging
// every query issued against the user DB along with its elapsed time.
type hooks struct{}

func (h *hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("USERDB > query %s %q", query, args)
	return context.WithValue(ctx, queryTimeKey{}, time.Now()), nil
}

func (h *hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimeKey{}).(time.Time); ok {
		log.Debugf("USERDB > took %s", time.Since(begin))
	}
	return ctx, nil
}
