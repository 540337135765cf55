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
	"time"
)

// Scan defaults. The CLI and config file start from these.
const (
	// DefaultConcurrency is the number of resolve/probe units in flight.
	DefaultConcurrency = 20
	// DefaultTimeout bounds each DNS lookup and each HTTP scheme attempt.
	DefaultTimeout = 5 * time.Second

	// DefaultCTTimeout bounds the single certificate transparency request.
	DefaultCTTimeout = 30 * time.Second
	// DefaultCTRecords caps how many certificate records are examined.
	DefaultCTRecords = 50
	// DefaultMaxCTCandidates caps how many CT-derived names are resolved.
	// CT searches can return thousands of names and resolving all of them
	// gets the scan itself rate limited.
	DefaultMaxCTCandidates = 100

	// DefaultProgressEvery is the number of completions between progress reports.
	DefaultProgressEvery = 50
)

// Scheduler sizing.
const (
	// MaxWorkers defines the absolute upper limit on the number of worker goroutines.
	MaxWorkers = 2048
	// WorkerQueueCapacity is the shared queue's buffer per worker.
	WorkerQueueCapacity = 64
)
