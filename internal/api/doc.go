// Package api provides the borgdesk REST API consumed by the web front end.
package api
