// Package passwords generates superuser passwords and hashes them in the
// "pbkdf2_sha256$<iterations>$<salt>$<hash>" form the web backend verifies.
package passwords
