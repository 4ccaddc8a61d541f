// Command letterpod-lambda runs one pipeline pass per scheduled EventBridge
// invocation. Configuration comes from the file named by LETTERPOD_CONFIG
// (or the default locations), with credentials usually held as ssm:
// references resolved at cold start.
package main
