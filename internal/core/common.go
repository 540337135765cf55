package core

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"time"
)

// WorkItem is one unit of work handed to a scheduler worker. Items are pooled;
// callbacks must not keep a reference after returning.
type WorkItem struct {
	// Key identifies the item in logs.
	Key       string
	Callback  WorkCallback
	Ctx       context.Context
	CreatedAt time.Time
}

// WorkCallback is the function signature for work item callbacks.
type WorkCallback func(item *WorkItem) error
