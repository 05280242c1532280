package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// notFoundCodes are the API error codes the checkers treat as "resource does
// not exist" rather than a hard failure.
var notFoundCodes = map[string]bool{
	"ResourceNotFoundException":         true,
	"ResourceNotFound":                  true,
	"NoSuchEntity":                      true,
	"NoSuchEntityException":             true,
	"LoadBalancerNotFound":              true,
	"LoadBalancerNotFoundException":     true,
	"TrailNotFoundException":            true,
	"InvalidVpcID.NotFound":             true,
	"InvalidSubnetID.NotFound":          true,
	"InvalidGroup.NotFound":             true,
	"NatGatewayNotFound":                true,
	"InvalidRouteTableID.NotFound":      true,
	"InvalidNetworkAclID.NotFound":      true,
	"InvalidInternetGatewayID.NotFound": true,
}

// IsNotFound reports whether err is an AWS API error indicating the
// requested resource does not exist.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return notFoundCodes[apiErr.ErrorCode()]
	}
	return false
}

// ErrorCode returns the AWS API error code for err, or an empty string when
// err is not an API error.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
