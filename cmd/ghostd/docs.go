package main

// General API documentation for swaggo. Regenerate internal/apidocs with
// `swag init -g cmd/ghostd/docs.go -o internal/apidocs`.
//
// @title           ghostd API
// @version         1.0
// @description     Text-prompted audio separation: submit a file and a description, poll the task, download the isolated and residual tracks.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
