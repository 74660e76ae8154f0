// Command statelessauth-server serves the /auth endpoints.
//
//	statelessauth-server serve --config config.yaml
//	statelessauth-server db migrate
//	statelessauth-server config lint
//
// Every setting can also come from STATELESSAUTH_* environment variables,
// e.g. STATELESSAUTH_JWT_SECRET or STATELESSAUTH_STORE_DRIVER=postgres.
package main

func main() {
	Execute()
}
