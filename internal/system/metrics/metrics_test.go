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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordsOnFreshRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementOutcome("new_primary")
	m.IncrementOutcome("new_primary")
	m.IncrementContactsCreated("secondary")
	m.AddContactsRelinked(3)
	m.AddContactsRelinked(0)
	m.IncrementRetries()
	m.ObserveIdentifyLatency(20 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.IdentifyOutcome.WithLabelValues("new_primary")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ContactsCreated.WithLabelValues("secondary")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ContactsRelinked))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IdentifyRetries))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("matched")
		m.ObserveIdentifyLatency(time.Second)
		m.IncrementContactsCreated("primary")
		m.AddContactsRelinked(1)
		m.IncrementRetries()
	})
}
