// Package fakes provides test doubles for the credbox vault client seams.
//
// Fakes are written by hand rather than generated so tests control failure
// injection precisely.
//
//	client := fakes.NewFakeKeyringClient()
//	v := keyring.New("keyring", nil, keyring.WithClient(client))
//
//	// Simulate a locked keychain for one account.
//	client.Errors["9:com.app.x.token"] = contracts.ErrKeyringLocked
package fakes
