// Package server exposes the pipeline to its hosts: an HTTP server accepting
// S3-style notifications on POST /notifications, and a handler for the AWS
// Lambda runtime. Both decode the notification into event records and run one
// invocation per request.
package server
