// Package types defines the data model shared by the bundle extractor, the
// config loader, and the app supervisor: AppConfig, Config, Incarnation, and
// the Router's RouteTarget values.
package types
