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

package scripts

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

var CreateContactsTable = map[string]string{
	"postgres": `
	CREATE TABLE IF NOT EXISTS contacts (
		id              BIGSERIAL PRIMARY KEY,
		phone_number    TEXT NULL,
		email           TEXT NULL,
		linked_id       BIGINT NULL REFERENCES contacts (id),
		link_precedence VARCHAR(16) NOT NULL DEFAULT 'primary',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		deleted_at      TIMESTAMPTZ NULL,
		CONSTRAINT contacts_link_precedence_check CHECK (link_precedence IN ('primary', 'secondary')),
		CONSTRAINT contacts_link_check CHECK (
			(link_precedence = 'primary' AND linked_id IS NULL) OR
			(link_precedence = 'secondary' AND linked_id IS NOT NULL AND linked_id <> id))
	)`,
}

var CreateContactIndexes = map[string][]string{
	"postgres": {
		`CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts (email) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts (phone_number) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_linked_id ON contacts (linked_id) WHERE deleted_at IS NULL`,
	},
}

var FindContactsBySignals = map[string]string{
	"postgres": `SELECT ` + contactColumns + ` FROM contacts
	WHERE deleted_at IS NULL
	  AND ((email = $1 AND $1 <> '') OR (phone_number = $2 AND $2 <> ''))
	ORDER BY created_at, id`,
}

var FindContactComponentMembers = map[string]string{
	"postgres": `SELECT ` + contactColumns + ` FROM contacts
	WHERE deleted_at IS NULL AND (id = $1 OR linked_id = $1)
	ORDER BY created_at, id`,
}

var FindContactsLinkedEitherDirection = map[string]string{
	"postgres": `SELECT ` + contactColumns + ` FROM contacts
	WHERE deleted_at IS NULL
	  AND (linked_id = $1 OR id = (SELECT linked_id FROM contacts WHERE id = $1))
	ORDER BY created_at, id`,
}

var FindContactById = map[string]string{
	"postgres": `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND deleted_at IS NULL`,
}

var InsertContact = map[string]string{
	"postgres": `INSERT INTO contacts (email, phone_number, linked_id, link_precedence, created_at, updated_at)
	VALUES ($1, $2, $3, $4, clock_timestamp(), clock_timestamp())
	RETURNING id, created_at, updated_at`,
}

var UpdateContactLink = map[string]string{
	"postgres": `UPDATE contacts
	SET link_precedence = $2, linked_id = $3, updated_at = clock_timestamp()
	WHERE id = $1 AND deleted_at IS NULL
	RETURNING updated_at`,
}
