// Package pestroutes implements repository.Transport over the PestRoutes CRM
// REST API.
//
// Reads use the two step protocol of the CRM: GET {base}/{entity}/search
// with one query parameter per filter returns the matching ids, then
// GET {base}/{entity}/get?{entity}IDs=[...] returns the documents under the
// plural entity name. Every request carries authenticationKey and
// authenticationToken; office scoped requests add officeIDs=[id].
//
//	client, err := pestroutes.New(pestroutes.Config{
//		BaseURL:   "https://demo.pestroutes.com/api",
//		AuthKey:   key,
//		AuthToken: token,
//	})
//
// A 404 is returned as a repository not found error. Any other non 2xx
// status or a response with success=false matches ErrRemote and carries the
// status, readable with StatusCode.
package pestroutes
