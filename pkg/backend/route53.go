package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/sirupsen/logrus"
)

type route53Backend struct {
	baseDomain string
	ZoneID     string
	target     string
	ingressIPs []string
	ttlSeconds int64

	Svc *route53.Route53
}

// NewRoute53 manages the routing target inside the given hosted zone. The
// target must live under the zone's base domain.
func NewRoute53(zoneID, target string, ingressIPs []string, ttlSeconds int64) (Backend, error) {
	s, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	svc := route53.New(s, &aws.Config{
		MaxRetries: aws.Int(3),
	})

	z, err := svc.GetHostedZone(&route53.GetHostedZoneInput{
		Id: aws.String(zoneID),
	})
	if err != nil {
		return nil, err
	}

	baseDomain := strings.TrimSuffix(aws.StringValue(z.HostedZone.Name), ".")
	if !strings.HasSuffix(target, baseDomain) {
		return nil, fmt.Errorf("routing target %v is not within hosted zone %v", target, baseDomain)
	}

	if len(ingressIPs) == 0 {
		return nil, fmt.Errorf("at least one ingress IP is required to manage the routing target")
	}

	return &route53Backend{
		baseDomain: baseDomain,
		ZoneID:     aws.StringValue(z.HostedZone.Id),
		target:     target,
		ingressIPs: ingressIPs,
		ttlSeconds: ttlSeconds,
		Svc:        svc,
	}, nil
}

func (b *route53Backend) EnsureRoutingTarget(ctx context.Context) error {
	rr := make([]*route53.ResourceRecord, 0)
	for _, ip := range b.ingressIPs {
		rr = append(rr, &route53.ResourceRecord{
			Value: aws.String(ip),
		})
	}

	rrs := &route53.ResourceRecordSet{
		Type:            aws.String("A"),
		Name:            aws.String(b.target),
		ResourceRecords: rr,
		TTL:             aws.Int64(b.ttlSeconds),
	}

	rrsInput := route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(b.ZoneID),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action:            aws.String("UPSERT"),
					ResourceRecordSet: rrs,
				},
			},
		},
	}

	if _, err := b.Svc.ChangeResourceRecordSetsWithContext(ctx, &rrsInput); err != nil {
		return fmt.Errorf("failed to upsert route53 record %v with error %v", b.target, err)
	}

	logrus.Infof("routing target %v -> %v", b.target, strings.Join(b.ingressIPs, ", "))
	return nil
}
