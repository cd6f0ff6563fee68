/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the contact resolution service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Identify outcomes: new_primary, new_secondary, merged, matched, invalid, error
	IdentifyOutcome *prometheus.CounterVec

	IdentifyLatency prometheus.Histogram

	// Contacts written by link precedence
	ContactsCreated *prometheus.CounterVec

	// Contacts re-pointed at a different primary, demoted primaries included
	ContactsRelinked prometheus.Counter

	// Units of work retried after a serialization failure, deadlock or lock timeout
	IdentifyRetries prometheus.Counter
}

// New registers the collectors with registerer. Pass prometheus.DefaultRegisterer to expose them
// on the default /metrics handler.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		IdentifyOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_identify_outcomes_total",
			Help: "Total identify requests by outcome",
		}, []string{"outcome"}),

		IdentifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contact_identify_duration_seconds",
			Help:    "Duration of identify requests including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_contacts_created_total",
			Help: "Total contacts created by link precedence",
		}, []string{"link_precedence"}),

		ContactsRelinked: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_contacts_relinked_total",
			Help: "Total contacts re-pointed at a canonical primary contact",
		}),

		IdentifyRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_identify_retries_total",
			Help: "Total identify units of work retried after a transient conflict",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.IdentifyOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveIdentifyLatency(d time.Duration) {
	if m != nil {
		m.IdentifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementContactsCreated(linkPrecedence string) {
	if m != nil {
		m.ContactsCreated.WithLabelValues(linkPrecedence).Inc()
	}
}

func (m *Metrics) AddContactsRelinked(count int) {
	if m != nil && count > 0 {
		m.ContactsRelinked.Add(float64(count))
	}
}

func (m *Metrics) IncrementRetries() {
	if m != nil {
		m.IdentifyRetries.Inc()
	}
}
