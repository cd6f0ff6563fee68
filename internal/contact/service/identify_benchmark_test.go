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

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/model"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
)

// BenchmarkIdentify_NewContacts measures the path that always creates a primary contact.
func BenchmarkIdentify_NewContacts(b *testing.B) {
	svc := NewContactService(store.NewMemoryTransactor(), config.ResolverConfig{}, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := model.IdentifyRequest{Email: uuid.New().String() + "@example.com"}
		if _, err := svc.Identify(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIdentify_LargeComponent measures repeat lookups into one component of many members.
func BenchmarkIdentify_LargeComponent(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("members=%d", size), func(b *testing.B) {
			svc := NewContactService(store.NewMemoryTransactor(), config.ResolverConfig{}, nil)
			ctx := context.Background()
			for i := 0; i < size; i++ {
				req := model.IdentifyRequest{Email: fmt.Sprintf("member%d@example.com", i), PhoneNumber: "555"}
				if _, err := svc.Identify(ctx, req); err != nil {
					b.Fatal(err)
				}
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := svc.Identify(ctx, model.IdentifyRequest{PhoneNumber: "555"}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
