// Package models defines the records crmctl writes during bootstrap.
//
//   - [User] : the auth_user account created by superuser provisioning
//   - [Record] : a generic fixture row (table, primary key, column values)
//
// [User] implements [Model]; the [Repository] interface defines the CRUD surface its repository exposes.
package models
