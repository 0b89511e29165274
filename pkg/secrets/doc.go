/*
Package secrets resolves ${secret:name} references in configuration values.

Sensitive settings such as API keys and Git credentials can name a secret
instead of holding it:

	server:
	  auth:
	    keys:
	      - name: ci
	        key: ${secret:ci-api-key}

Providers are tried in order. The environment provider maps a name to an
upper-cased variable (ci-api-key with the default prefix reads
FIELDGUARD_SECRET_CI_API_KEY); the file provider reads a file of the same
name from a directory, the layout used by Kubernetes and Docker secret mounts.

Resolved values are cached for the life of the Resolver and never logged.
*/
package secrets
